package integration

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/assessorai/splegis-crawler/internal/testutil"
	"github.com/assessorai/splegis-crawler/pkg/fetch"
	"github.com/assessorai/splegis-crawler/pkg/pacer"
	"github.com/assessorai/splegis-crawler/pkg/pipeline"
	"github.com/assessorai/splegis-crawler/pkg/proposicao"
	"github.com/assessorai/splegis-crawler/pkg/walker"
)

// setupRedis creates a Redis container for integration testing.
func setupRedis(t *testing.T) (*redis.Client, func()) {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr: host + ":" + port.Port(),
	})

	cleanup := func() {
		redisClient.Close()
		container.Terminate(ctx)
	}

	return redisClient, cleanup
}

// setupMongo creates a MongoDB container and a connected store.
func setupMongo(t *testing.T) (*pipeline.Store, func()) {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "mongo:7",
		ExposedPorts: []string{"27017/tcp"},
		WaitingFor:   wait.ForLog("Waiting for connections"),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start MongoDB container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "27017")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	store, err := pipeline.NewStore(ctx, "mongodb://"+host+":"+port.Port(), "splegis_test", "proposals")
	if err != nil {
		t.Fatalf("Failed to connect store: %v", err)
	}

	cleanup := func() {
		store.Close(context.Background())
		container.Terminate(ctx)
	}

	return store, cleanup
}

func newFetchClient(t *testing.T, redisClient *redis.Client) *fetch.Client {
	t.Helper()

	cfg := fetch.DefaultConfig(redisClient, "splegis-crawler-integration/1.0")
	cfg.Pacing = pacer.Config{
		MinInterval: 5 * time.Millisecond,
		MaxInterval: 20 * time.Millisecond,
	}

	client, err := fetch.New(cfg)
	if err != nil {
		t.Fatalf("Failed to create fetch client: %v", err)
	}
	return client
}

func newWalker(t *testing.T, portalURL string, limit int) *walker.Walker {
	t.Helper()

	w, err := walker.New(walker.Config{
		Source: proposicao.Source{
			House: "Câmara Municipal de São Paulo",
			UF:    "SP",
			Slug:  "sp-sao-paulo",
		},
		BaseURL:  portalURL,
		PageSize: 10,
		Limit:    limit,
	})
	if err != nil {
		t.Fatalf("Failed to create walker: %v", err)
	}
	return w
}

// TestFullCrawlFlow runs the complete flow against a mock portal:
// pagination → derivation → document download → MongoDB upsert.
func TestFullCrawlFlow(t *testing.T) {
	redisClient, redisCleanup := setupRedis(t)
	defer redisCleanup()

	store, mongoCleanup := setupMongo(t)
	defer mongoCleanup()

	portal := testutil.NewMockPortal(testutil.NewRows(25))
	defer portal.Close()

	client := newFetchClient(t, redisClient)
	root := t.TempDir()
	sink := pipeline.New(store, pipeline.NewDownloader(client, root))

	summary, err := newWalker(t, portal.URL(), 0).Run(context.Background(), client, sink)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	if summary.Emitted != 25 {
		t.Errorf("Emitted = %d, want 25", summary.Emitted)
	}
	if summary.Pages != 3 {
		t.Errorf("Pages = %d, want 3 (page size 10)", summary.Pages)
	}
	if summary.Reason != "exhausted" {
		t.Errorf("Reason = %q, want exhausted", summary.Reason)
	}

	if portal.GetListingCount() != 3 {
		t.Errorf("listing requests = %d, want 3", portal.GetListingCount())
	}
	if portal.GetDownloadCount() != 25 {
		t.Errorf("document downloads = %d, want 25", portal.GetDownloadCount())
	}

	// Every proposal persisted.
	ctx := context.Background()
	n, err := store.CountBySource(ctx, "Câmara Municipal de São Paulo")
	if err != nil {
		t.Fatalf("CountBySource() error: %v", err)
	}
	if n != 25 {
		t.Errorf("stored proposals = %d, want 25", n)
	}

	// Spot-check one document end to end.
	doc, err := store.Get(ctx, proposicao.ContentID("9000001"))
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if doc == nil {
		t.Fatal("first proposal not stored")
	}
	if doc.Path != "SP/sp-sao-paulo/pl-1-2024.md" {
		t.Errorf("Path = %q", doc.Path)
	}
	if doc.DownloadStatus != "ok" {
		t.Errorf("DownloadStatus = %q, want ok", doc.DownloadStatus)
	}

	data, err := os.ReadFile(filepath.Join(root, doc.FilePath))
	if err != nil {
		t.Fatalf("reading downloaded file: %v", err)
	}
	if string(data) != "%PDF-1.4 mock document 9000001" {
		t.Errorf("file content = %q", data)
	}
}

// TestRecrawlIsIdempotent re-runs a crawl and checks that proposals update
// in place and documents are not fetched twice.
func TestRecrawlIsIdempotent(t *testing.T) {
	redisClient, redisCleanup := setupRedis(t)
	defer redisCleanup()

	store, mongoCleanup := setupMongo(t)
	defer mongoCleanup()

	portal := testutil.NewMockPortal(testutil.NewRows(8))
	defer portal.Close()

	client := newFetchClient(t, redisClient)
	root := t.TempDir()
	sink := pipeline.New(store, pipeline.NewDownloader(client, root))
	w := newWalker(t, portal.URL(), 0)

	ctx := context.Background()
	if _, err := w.Run(ctx, client, sink); err != nil {
		t.Fatalf("first Run() error: %v", err)
	}

	firstDownloads := portal.GetDownloadCount()

	if _, err := w.Run(ctx, client, sink); err != nil {
		t.Fatalf("second Run() error: %v", err)
	}

	// Listing pages came from the Redis cache the second time.
	if portal.GetListingCount() != 1 {
		t.Errorf("listing requests = %d, want 1 (second walk cached)", portal.GetListingCount())
	}

	// Documents already on disk are not refetched.
	if portal.GetDownloadCount() != firstDownloads {
		t.Errorf("downloads = %d, want %d (files reused)", portal.GetDownloadCount(), firstDownloads)
	}

	// Still one document per proposal, with the scrape counter bumped.
	n, err := store.CountBySource(ctx, "Câmara Municipal de São Paulo")
	if err != nil {
		t.Fatalf("CountBySource() error: %v", err)
	}
	if n != 8 {
		t.Errorf("stored proposals = %d, want 8", n)
	}

	doc, err := store.Get(ctx, proposicao.ContentID("9000003"))
	if err != nil || doc == nil {
		t.Fatalf("Get() = %v, %v", doc, err)
	}
	if doc.ScrapeCount != 2 {
		t.Errorf("ScrapeCount = %d, want 2", doc.ScrapeCount)
	}
}

// TestCrawlWithLimit stops mid-page and leaves later pages unfetched.
func TestCrawlWithLimit(t *testing.T) {
	redisClient, redisCleanup := setupRedis(t)
	defer redisCleanup()

	store, mongoCleanup := setupMongo(t)
	defer mongoCleanup()

	portal := testutil.NewMockPortal(testutil.NewRows(50))
	defer portal.Close()

	client := newFetchClient(t, redisClient)
	sink := pipeline.New(store, pipeline.NewDownloader(client, t.TempDir()))

	summary, err := newWalker(t, portal.URL(), 13).Run(context.Background(), client, sink)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	if summary.Emitted != 13 {
		t.Errorf("Emitted = %d, want 13", summary.Emitted)
	}
	if summary.Reason != "limit" {
		t.Errorf("Reason = %q, want limit", summary.Reason)
	}
	if portal.GetListingCount() != 2 {
		t.Errorf("listing requests = %d, want 2 (limit hit on second page)", portal.GetListingCount())
	}
}

// TestMalformedResponseAborts stops the walk when the portal answers with
// something other than a listing page.
func TestMalformedResponseAborts(t *testing.T) {
	redisClient, redisCleanup := setupRedis(t)
	defer redisCleanup()

	portal := testutil.NewMockPortal(nil)
	defer portal.Close()
	portal.SetResponse("/Pesquisa/PageDataProjeto", testutil.NewMalformedResponse())

	client := newFetchClient(t, redisClient)
	sink := pipeline.New(nil, nil, pipeline.WithDryRun())

	summary, err := newWalker(t, portal.URL(), 0).Run(context.Background(), client, sink)
	if !errors.Is(err, walker.ErrMalformedResponse) {
		t.Fatalf("error = %v, want ErrMalformedResponse", err)
	}
	if summary.Reason != "error" {
		t.Errorf("Reason = %q, want error", summary.Reason)
	}
}
