// Пакет catalogclient — HTTP-клиент для взаимодействия с Catalog Query Service.
// Получает статусы файлов контейнера, отправляет команду репликации
// и управляет списком инстансов (namespace) каталога.
package catalogclient

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/goartstore/availability-module/internal/domain/model"
)

// ErrUnrecognizedStatus — сервис вернул статус файла вне известного набора.
var ErrUnrecognizedStatus = errors.New("нераспознанный статус файла")

// catalogRequestDuration — длительность запросов к Catalog Query Service.
var catalogRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "av_catalog_request_duration_seconds",
	Help:    "Длительность запросов к Catalog Query Service",
	Buckets: prometheus.DefBuckets,
}, []string{"operation", "result"})

// InstanceList — ответ GET instances.
type InstanceList struct {
	// ActiveInstance — имя активного инстанса (может отсутствовать)
	ActiveInstance string `json:"activeInstance,omitempty"`
	// Instances — все доступные инстансы
	Instances []model.Instance `json:"instances"`
}

// Client — HTTP-клиент для Catalog Query Service.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
}

// New создаёт клиент Catalog Query Service.
// baseURL — базовый URL API (например, http://catalog:8888/rucio-jupyterlab).
// caCertPath — путь к CA-сертификату для TLS (пустая строка — стандартный пул).
// timeout — таймаут HTTP-запросов (0 — без таймаута).
func New(baseURL string, caCertPath string, timeout time.Duration, logger *slog.Logger) (*Client, error) {
	httpClient := &http.Client{Timeout: timeout}

	if caCertPath != "" {
		tlsConfig, err := buildTLSConfig(caCertPath)
		if err != nil {
			return nil, fmt.Errorf("загрузка CA-сертификата каталога: %w", err)
		}
		httpClient.Transport = &http.Transport{
			TLSClientConfig: tlsConfig,
		}
		logger.Info("CA-сертификат каталога добавлен в пул доверия",
			slog.String("ca_cert", caCertPath),
		)
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		logger:     logger.With(slog.String("component", "catalog_client")),
	}, nil
}

// ListFiles запрашивает статусы файлов контейнера.
// GET did?namespace=<ns>&poll=<0|1>&did=<did>
// poll=true сообщает сервису, что это фоновая перепроверка.
func (c *Client) ListFiles(ctx context.Context, namespace, did string, poll bool) ([]model.FileDetails, error) {
	start := time.Now()

	query := url.Values{}
	query.Set("namespace", namespace)
	if poll {
		query.Set("poll", "1")
	} else {
		query.Set("poll", "0")
	}
	query.Set("did", did)

	var files []model.FileDetails
	err := c.doJSON(ctx, http.MethodGet, "did?"+query.Encode(), nil, &files)
	observe("list_files", start, err)
	if err != nil {
		return nil, fmt.Errorf("ListFiles %s: %w", did, err)
	}

	// null от сервиса — пустой контейнер, а не «не загружено»
	if files == nil {
		files = []model.FileDetails{}
	}
	return files, nil
}

// MakeAvailable отправляет команду репликации контейнера.
// POST did/make-available?namespace=<ns>, тело {"method":"replica","did":...}
func (c *Client) MakeAvailable(ctx context.Context, namespace, did string) error {
	start := time.Now()

	body := struct {
		Method string `json:"method"`
		DID    string `json:"did"`
	}{Method: "replica", DID: did}

	err := c.doJSON(ctx, http.MethodPost, "did/make-available?namespace="+url.QueryEscape(namespace), body, nil)
	observe("make_available", start, err)
	if err != nil {
		return fmt.Errorf("MakeAvailable %s: %w", did, err)
	}
	return nil
}

// ListInstances запрашивает список инстансов каталога.
// GET instances
func (c *Client) ListInstances(ctx context.Context) (*InstanceList, error) {
	start := time.Now()

	var list InstanceList
	err := c.doJSON(ctx, http.MethodGet, "instances", nil, &list)
	observe("list_instances", start, err)
	if err != nil {
		return nil, fmt.Errorf("ListInstances: %w", err)
	}
	return &list, nil
}

// SetActiveInstance сохраняет выбор активного инстанса на стороне сервиса.
// PUT instances, тело {"instance": name}
func (c *Client) SetActiveInstance(ctx context.Context, name string) error {
	start := time.Now()

	body := struct {
		Instance string `json:"instance"`
	}{Instance: name}

	err := c.doJSON(ctx, http.MethodPut, "instances", body, nil)
	observe("set_active_instance", start, err)
	if err != nil {
		return fmt.Errorf("SetActiveInstance %s: %w", name, err)
	}
	return nil
}

// doJSON выполняет запрос к API каталога относительно baseURL.
// in — тело запроса (nil — без тела), out — приёмник ответа (nil — ответ игнорируется).
func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	reqURL := c.baseURL + "/" + path

	body := io.Reader(http.NoBody)
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("кодирование тела запроса: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return fmt.Errorf("создание запроса: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req) //nolint:gosec // G704: URL из конфигурации
	if err != nil {
		return fmt.Errorf("запрос к %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("каталог вернул статус %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	c.logger.Debug("Ответ каталога получен",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
	)

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		var statusErr *model.StatusError
		if errors.As(err, &statusErr) {
			return fmt.Errorf("%w: %q", ErrUnrecognizedStatus, statusErr.Value)
		}
		return fmt.Errorf("декодирование ответа: %w", err)
	}
	return nil
}

// observe записывает длительность запроса в метрику.
func observe(operation string, start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	catalogRequestDuration.WithLabelValues(operation, result).Observe(time.Since(start).Seconds())
}

// buildTLSConfig создаёт TLS-конфигурацию с кастомным CA-сертификатом.
func buildTLSConfig(caCertPath string) (*tls.Config, error) {
	caCert, err := os.ReadFile(caCertPath)
	if err != nil {
		return nil, fmt.Errorf("чтение CA-сертификата: %w", err)
	}

	caCertPool, err := x509.SystemCertPool()
	if err != nil {
		caCertPool = x509.NewCertPool()
	}
	caCertPool.AppendCertsFromPEM(caCert)

	return &tls.Config{
		RootCAs: caCertPool,
	}, nil
}
