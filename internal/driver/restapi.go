package driver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/mraysmit/apex-sub000/internal/apexerr"
	"github.com/mraysmit/apex-sub000/internal/ports"
	"github.com/mraysmit/apex-sub000/internal/value"
)

// AuthKind selects the authentication scheme RestApi resolves through a
// SecretProvider collaborator, per §4.4.
type AuthKind string

const (
	AuthNone   AuthKind = "none"
	AuthBearer AuthKind = "bearer"
	AuthBasic  AuthKind = "basic"
	AuthAPIKey AuthKind = "api-key"
)

// RestApi is the templated HTTP driver of §4.4: a path template whose
// `{name}` placeholders are replaced from the call's params, a pluggable
// auth scheme resolved through a SecretProvider, and a per-endpoint
// circuit breaker (sony/gobreaker) wrapping the call. Only the path is
// templated: no query-string or request-body template is applied, and
// requests are sent without a body.
type RestApi struct {
	baseURL      string
	pathTemplate string
	method       string
	authKind     AuthKind
	secretRef    string
	timeout      time.Duration

	client  *http.Client
	secrets ports.SecretProvider
	cb      *gobreaker.CircuitBreaker
}

// NewRestAPI builds a RestApi driver. SetSecretProvider must be called
// before Init if authKind != AuthNone.
func NewRestAPI(config map[string]any) (ports.DataSourceDriver, error) {
	baseURL, _ := config["base-url"].(string)
	path, _ := config["path-template"].(string)
	if baseURL == "" || path == "" {
		return nil, apexerr.New(apexerr.KindSchemaViolation, "NewRestAPI", "base-url and path-template are required")
	}
	method, _ := config["method"].(string)
	if method == "" {
		method = http.MethodGet
	}
	authKind, _ := config["auth"].(string)
	secretRef, _ := config["secret-ref"].(string)
	timeoutSec, _ := config["timeout-seconds"].(int)
	if timeoutSec == 0 {
		timeoutSec = 5
	}
	r := &RestApi{
		baseURL:      baseURL,
		pathTemplate: path,
		method:       method,
		authKind:     AuthKind(authKind),
		secretRef:    secretRef,
		timeout:      time.Duration(timeoutSec) * time.Second,
	}
	r.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "restapi:" + baseURL,
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	return r, nil
}

// SetSecretProvider injects the collaborator RestApi resolves auth
// material through. Call before Init.
func (d *RestApi) SetSecretProvider(sp ports.SecretProvider) { d.secrets = sp }

func (d *RestApi) Init(ctx context.Context) error {
	d.client = &http.Client{Timeout: d.timeout}
	return nil
}

func (d *RestApi) Shutdown(ctx context.Context) error { return nil }
func (d *RestApi) Healthy(ctx context.Context) bool   { return d.client != nil }

func (d *RestApi) Capabilities() ports.Capabilities {
	return ports.Capabilities{SupportsBatch: false, SupportsFilter: false, SupportsComposite: true}
}

func (d *RestApi) Resolve(ctx context.Context, datasetRef string, key value.Value, params map[string]value.Value) (ports.Record, bool, error) {
	merged := mergeParams(params, "key", key)
	rows, err := d.Query(ctx, "", merged)
	if err != nil {
		return nil, false, err
	}
	if len(rows) == 0 {
		return nil, false, nil
	}
	return rows[0], true, nil
}

func (d *RestApi) BatchResolve(ctx context.Context, datasetRef string, keys []value.Value, params map[string]value.Value) (map[string]ports.Record, error) {
	out := map[string]ports.Record{}
	for _, k := range keys {
		rec, ok, err := d.Resolve(ctx, datasetRef, k, params)
		if err != nil {
			return nil, err
		}
		if ok {
			out[value.Format(k)] = rec
		}
	}
	return out, nil
}

func (d *RestApi) Query(ctx context.Context, statement string, params map[string]value.Value) ([]ports.Record, error) {
	path := expandTemplate(d.pathTemplate, params)
	req, err := http.NewRequestWithContext(ctx, d.method, d.baseURL+path, nil)
	if err != nil {
		return nil, apexerr.Wrap(apexerr.KindConnectionError, "RestApi.Query", "bad request", err)
	}
	if err := d.applyAuth(ctx, req); err != nil {
		return nil, err
	}

	result, err := d.cb.Execute(func() (any, error) {
		resp, err := d.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return nil, apexerr.New(apexerr.KindAuthError, "RestApi.Query", "auth rejected")
		}
		if resp.StatusCode == http.StatusNotFound {
			return nil, apexerr.New(apexerr.KindNotFound, "RestApi.Query", "not found")
		}
		if resp.StatusCode >= 500 {
			return nil, apexerr.New(apexerr.KindConnectionError, "RestApi.Query", fmt.Sprintf("server error %d", resp.StatusCode))
		}
		return body, nil
	})
	if err != nil {
		if _, ok := apexerr.KindOf(err); ok {
			return nil, err
		}
		return nil, apexerr.Wrap(apexerr.KindConnectionError, "RestApi.Query", "request failed", err)
	}

	body := result.([]byte)
	return decodeRecords(body)
}

func (d *RestApi) applyAuth(ctx context.Context, req *http.Request) error {
	if d.authKind == AuthNone || d.secretRef == "" {
		return nil
	}
	if d.secrets == nil {
		return apexerr.New(apexerr.KindAuthError, "RestApi.applyAuth", "no secret provider configured")
	}
	secret, err := d.secrets.Get(ctx, d.secretRef)
	if err != nil {
		return apexerr.Wrap(apexerr.KindAuthError, "RestApi.applyAuth", "secret resolution failed", err)
	}
	switch d.authKind {
	case AuthBearer:
		req.Header.Set("Authorization", "Bearer "+secret)
	case AuthBasic:
		req.Header.Set("Authorization", "Basic "+secret)
	case AuthAPIKey:
		req.Header.Set("X-Api-Key", secret)
	}
	return nil
}

func expandTemplate(tmpl string, params map[string]value.Value) string {
	out := tmpl
	for k, v := range params {
		out = strings.ReplaceAll(out, "{"+k+"}", value.Format(v))
	}
	return out
}

func decodeRecords(body []byte) ([]ports.Record, error) {
	var single map[string]any
	if err := json.Unmarshal(body, &single); err == nil {
		rec := ports.Record{}
		for k, v := range single {
			rec[k] = value.FromAny(v)
		}
		return []ports.Record{rec}, nil
	}
	var many []map[string]any
	if err := json.Unmarshal(body, &many); err != nil {
		return nil, apexerr.Wrap(apexerr.KindDriverParseError, "decodeRecords", "invalid JSON response", err)
	}
	out := make([]ports.Record, len(many))
	for i, m := range many {
		rec := ports.Record{}
		for k, v := range m {
			rec[k] = value.FromAny(v)
		}
		out[i] = rec
	}
	return out, nil
}
