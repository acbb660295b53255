package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"stockdata-pipeline/internal/application"
	"stockdata-pipeline/internal/domain"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

//go:generate mockgen -destination=mock_httpdoer_test.go -package=provider_test stockdata-pipeline/internal/infrastructure/provider HTTPDoer

const (
	alphaVantageQueryPath = "/query"
	globalQuoteFunction   = "GLOBAL_QUOTE"

	globalQuoteKey = "Global Quote"
	priceKey       = "05. price"
	volumeKey      = "06. volume"

	maxBodyBytes = 1 << 20
)

type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// AlphaVantageProvider fetches quotes from the GLOBAL_QUOTE endpoint. The
// request timeout is owned by Client.
type AlphaVantageProvider struct {
	BaseURL string
	APIKey  string
	Client  HTTPDoer
	Log     *zap.Logger
}

var _ application.QuoteProvider = (*AlphaVantageProvider)(nil)

type globalQuoteResp struct {
	GlobalQuote  map[string]any `json:"Global Quote"`
	Note         string         `json:"Note"`
	Information  string         `json:"Information"`
	ErrorMessage string         `json:"Error Message"`
}

// notice returns the provider's explanation for an empty quote, if any.
// Rate limiting and bad keys come back as 200 with one of these fields set.
func (r globalQuoteResp) notice() string {
	for _, s := range []string{r.ErrorMessage, r.Note, r.Information} {
		if s != "" {
			return s
		}
	}
	return ""
}

func (p *AlphaVantageProvider) Latest(ctx context.Context, symbol string) (domain.Quote, error) {
	if p.APIKey == "" {
		return domain.Quote{}, domain.ErrMissingCredential
	}
	if p.BaseURL == "" {
		return domain.Quote{}, errors.New("alphavantage: missing base url")
	}

	u, err := url.Parse(p.BaseURL)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("alphavantage: invalid base url: %w", err)
	}
	u.Path = strings.TrimRight(u.Path, "/") + alphaVantageQueryPath
	q := u.Query()
	q.Set("function", globalQuoteFunction)
	q.Set("symbol", symbol)
	q.Set("apikey", p.APIKey)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("alphavantage: create request: %w", err)
	}

	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("%w: %w", domain.ErrUpstream, redactURL(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return domain.Quote{}, fmt.Errorf("%w: status %d", domain.ErrUpstream, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return domain.Quote{}, fmt.Errorf("%w: read body: %w", domain.ErrUpstream, err)
	}
	return p.parse(symbol, body)
}

func (p *AlphaVantageProvider) parse(symbol string, body []byte) (domain.Quote, error) {
	var payload globalQuoteResp
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&payload); err != nil {
		return domain.Quote{}, fmt.Errorf("%w: %w", domain.ErrMalformedPayload, err)
	}
	// the body must be exactly one JSON value
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return domain.Quote{}, fmt.Errorf("%w: trailing data after JSON object", domain.ErrMalformedPayload)
	}

	if len(payload.GlobalQuote) == 0 {
		p.logger().Debug("alphavantage.payload", zap.String("symbol", symbol), zap.ByteString("payload", body))
		if n := payload.notice(); n != "" {
			return domain.Quote{}, fmt.Errorf("%w: %s", domain.ErrQuoteNotFound, n)
		}
		return domain.Quote{}, domain.ErrQuoteNotFound
	}

	rawPrice, rawVolume := payload.GlobalQuote[priceKey], payload.GlobalQuote[volumeKey]
	var missing []string
	if rawPrice == nil {
		missing = append(missing, priceKey)
	}
	if rawVolume == nil {
		missing = append(missing, volumeKey)
	}
	if len(missing) > 0 {
		p.logger().Debug("alphavantage.payload", zap.String("symbol", symbol), zap.ByteString("payload", body))
		return domain.Quote{}, fmt.Errorf("%w: %s", domain.ErrMissingField, strings.Join(missing, ", "))
	}

	price, volume, err := coerce(fieldText(rawPrice), fieldText(rawVolume))
	if err != nil {
		return domain.Quote{}, err
	}
	return domain.Quote{Symbol: symbol, Price: price, Volume: volume}, nil
}

func coerce(rawPrice, rawVolume string) (decimal.Decimal, int64, error) {
	price, err := decimal.NewFromString(strings.TrimSpace(rawPrice))
	if err != nil {
		return decimal.Decimal{}, 0, &domain.CoercionError{Price: rawPrice, Volume: rawVolume, Err: err}
	}
	volume, err := strconv.ParseInt(strings.TrimSpace(rawVolume), 10, 64)
	if err != nil {
		return decimal.Decimal{}, 0, &domain.CoercionError{Price: rawPrice, Volume: rawVolume, Err: err}
	}
	if volume < 0 {
		return decimal.Decimal{}, 0, &domain.CoercionError{Price: rawPrice, Volume: rawVolume, Err: errors.New("negative volume")}
	}
	return price, volume, nil
}

func fieldText(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

// redactURL drops the request URL from client errors so the api key never
// reaches logs or run records.
func redactURL(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		return fmt.Errorf("%s request: %w", ue.Op, ue.Err)
	}
	return err
}

func (p *AlphaVantageProvider) logger() *zap.Logger {
	if p.Log == nil {
		return zap.NewNop()
	}
	return p.Log
}
