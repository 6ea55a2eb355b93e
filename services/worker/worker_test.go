package worker

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"apatel341/fabricworker/config"
	"apatel341/fabricworker/internal"
	"apatel341/fabricworker/internal/model"
	apperrors "apatel341/fabricworker/pkg/errors"
	"apatel341/fabricworker/services/publisher"
	"apatel341/fabricworker/services/storage"
)

// MockPublisher implements the publisher.Publisher interface for testing
type MockPublisher struct {
	mu       sync.Mutex
	messages [][]byte
	trims    int
}

// Ensure MockPublisher implements publisher.Publisher
var _ publisher.Publisher = (*MockPublisher)(nil)

func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

func (m *MockPublisher) Publish(message []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Copy the message to ensure thread safety
	messageCopy := make([]byte, len(message))
	copy(messageCopy, message)

	m.messages = append(m.messages, messageCopy)
	return nil
}

func (m *MockPublisher) TrimStreams() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trims++
	return nil
}

func (m *MockPublisher) Close() error {
	return nil
}

func (m *MockPublisher) Messages() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.messages))
	copy(out, m.messages)
	return out
}

func (m *MockPublisher) Trims() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.trims
}

func listingHTML(productLinks []string, nextURL string) string {
	var b strings.Builder
	b.WriteString("<html><body><ul>")
	for _, link := range productLinks {
		b.WriteString(`<li class="mList tc bgw"><a class="prodNameClamp" href="` + link + `">product</a></li>`)
	}
	b.WriteString("</ul>")
	if nextURL != "" {
		b.WriteString(`<a title="Next" href="` + nextURL + `">Next</a>`)
	}
	b.WriteString("</body></html>")
	return b.String()
}

func detailHTML(name, price string) string {
	return `<html><body>
<h1 class="bo center-heading">` + name + `</h1>
<div class="pdp_enq" data-dispid="4242"></div>
<span id="askprice_pg-1">` + price + `</span>
</body></html>`
}

// newCatalogServer serves a two page category with three products.
func newCatalogServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/impcat/cotton-fabric.html", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(listingHTML(
			[]string{"/proddetail/p1.html", "/proddetail/p2.html"},
			"/impcat/cotton-fabric-2.html",
		)))
	})
	mux.HandleFunc("/impcat/cotton-fabric-2.html", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(listingHTML([]string{"/proddetail/p3.html"}, "")))
	})
	mux.HandleFunc("/proddetail/p1.html", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(detailHTML("Cotton Cloth", "₹ 250 / Meter")))
	})
	mux.HandleFunc("/proddetail/p2.html", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(detailHTML("Denim Roll", "Rs. 1,200")))
	})
	mux.HandleFunc("/proddetail/p3.html", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(detailHTML("Silk Saree", "Get Latest Price")))
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func testWorkerConfig(t *testing.T, serverURL string) *config.Config {
	t.Helper()
	return &config.Config{
		StartURLs:       []string{serverURL + "/impcat/cotton-fabric.html"},
		UserAgents:      []string{"fabricworker-test/1.0"},
		Concurrency:     2,
		HostDelay:       time.Millisecond,
		HostStartDelay:  time.Millisecond,
		HostDelayMax:    50 * time.Millisecond,
		BlockCooldown:   time.Minute,
		FetchTimeout:    5 * time.Second,
		MaxAttempts:     2,
		RetryBaseDelay:  time.Millisecond,
		MaxBodyBytes:    1 << 20,
		VisitedCapacity: 1024,
		RawDir:          t.TempDir(),
		ProcessedPath:   filepath.Join(t.TempDir(), "processed.csv"),
		Environment:     "test",
	}
}

func readProcessedCSV(t *testing.T, path string) [][]string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := strings.TrimPrefix(string(data), "\uFEFF")
	rows, err := csv.NewReader(strings.NewReader(content)).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestWorkerRunCrawl(t *testing.T) {
	server := newCatalogServer(t)
	cfg := testWorkerConfig(t, server.URL)

	w := NewWorker(cfg, internal.Dependencies{})
	stats, err := w.RunCrawl(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(2), stats.ListingPages)
	assert.Equal(t, int64(3), stats.Records)

	files, err := filepath.Glob(filepath.Join(cfg.RawDir, "*.jsonl"))
	require.NoError(t, err)
	require.Len(t, files, 1, "one raw file per run")

	records, err := storage.NewFileReader(cfg.RawDir).ReadAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, records, 3)
}

func TestWorkerPublishesEveryRecord(t *testing.T) {
	server := newCatalogServer(t)
	cfg := testWorkerConfig(t, server.URL)
	pub := NewMockPublisher()

	w := NewWorker(cfg, internal.Dependencies{Publisher: pub})
	stats, err := w.RunCrawl(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(3), stats.Records)

	messages := pub.Messages()
	require.Len(t, messages, 3, "one message per stored record")

	names := make([]string, 0, len(messages))
	for _, message := range messages {
		var record model.RawProductRecord
		require.NoError(t, json.Unmarshal(message, &record))
		names = append(names, record.ProductName)
	}
	assert.ElementsMatch(t, []string{"Cotton Cloth", "Denim Roll", "Silk Saree"}, names)

	assert.Equal(t, 1, pub.Trims(), "streams should be trimmed once after the crawl")
}

func TestWorkerRunTransform(t *testing.T) {
	cfg := testWorkerConfig(t, "http://unused.invalid")

	store, err := storage.NewFileStore(cfg.RawDir, "seed")
	require.NoError(t, err)
	records := []model.RawProductRecord{
		{ProductURL: "https://www.indiamart.com/proddetail/a.html", ProductName: "Cotton Cloth", PriceText: "₹ 250 / Meter", FabricType: "Cotton"},
		{ProductURL: "https://www.indiamart.com/proddetail/b.html", ProductName: "Denim Roll", PriceText: "Get Latest Price"},
	}
	for i := range records {
		require.NoError(t, store.Append(context.Background(), &records[i]))
	}
	require.NoError(t, store.Close())

	w := NewWorker(cfg, internal.Dependencies{})
	summary, err := w.RunTransform(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, summary.RawRecords)
	assert.Equal(t, 2, summary.UniqueRecords)
	assert.Equal(t, 1, summary.PricesParsed)

	rows := readProcessedCSV(t, cfg.ProcessedPath)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"product_id", "fabric_type", "price", "unit", "currency"}, rows[0])
	assert.Equal(t, []string{"1", "Cotton", "250", "Meter", "INR"}, rows[1])
	assert.Equal(t, []string{"2", "", "", "", ""}, rows[2])
}

func TestWorkerRunBothPhases(t *testing.T) {
	server := newCatalogServer(t)
	cfg := testWorkerConfig(t, server.URL)

	w := NewWorker(cfg, internal.Dependencies{})
	require.NoError(t, w.Run(context.Background(), ModeBoth))

	rows := readProcessedCSV(t, cfg.ProcessedPath)
	require.Len(t, rows, 4, "header plus one row per product")
	assert.Equal(t, "1", rows[1][0])
	assert.Equal(t, "3", rows[3][0])
}

func TestWorkerDefaultModeRunsBoth(t *testing.T) {
	server := newCatalogServer(t)
	cfg := testWorkerConfig(t, server.URL)

	w := NewWorker(cfg, internal.Dependencies{})
	require.NoError(t, w.Run(context.Background(), ""))

	_, err := os.Stat(cfg.ProcessedPath)
	assert.NoError(t, err, "empty mode should run through the transform phase")
}

func TestWorkerRejectsUnknownMode(t *testing.T) {
	cfg := testWorkerConfig(t, "http://unused.invalid")

	w := NewWorker(cfg, internal.Dependencies{})
	err := w.Run(context.Background(), "publish")
	require.Error(t, err)
	assert.Equal(t, apperrors.KindConfiguration, apperrors.KindOf(err))
	assert.Contains(t, err.Error(), "publish")
}
