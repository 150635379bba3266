//go:build e2e

package e2e

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"math"
	"mime/multipart"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/verdantlabs/verdant/internal/agui"
	"github.com/verdantlabs/verdant/internal/api/handlers"
	"github.com/verdantlabs/verdant/internal/extract"
	"github.com/verdantlabs/verdant/internal/genai"
	"github.com/verdantlabs/verdant/internal/jobs"
	"github.com/verdantlabs/verdant/internal/repository"
	"github.com/verdantlabs/verdant/internal/server"
	"github.com/verdantlabs/verdant/internal/service"
	"github.com/verdantlabs/verdant/internal/storage"
	"github.com/verdantlabs/verdant/internal/testutil"
)

// E2ETestEnv holds all resources needed for E2E tests
type E2ETestEnv struct {
	T            *testing.T
	Ctx          context.Context
	PostgresC    *testutil.PostgresContainer
	RustFSC      *testutil.RustFSContainer
	Pool         *pgxpool.Pool
	ServerURL    string
	ServerCloser func()
	S3Client     *storage.S3Client
	TenantID     string
	AuthToken    string
	HTTPClient   *http.Client

	trackerSvc *service.TrackerService
}

// SetupE2EEnv creates a full E2E test environment with containers and server.
// Embedding and generation run against deterministic in-process fakes so the
// suite never talks to an external model API.
func SetupE2EEnv(t *testing.T) *E2ETestEnv {
	ctx := context.Background()

	pgC := testutil.NewPostgresContainer(ctx, t)
	s3C := testutil.NewRustFSContainer(ctx, t)

	pool := testutil.NewTestPool(ctx, t, pgC, "../../migrations")

	s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
		Endpoint:        s3C.Endpoint(),
		Region:          "us-east-1",
		AccessKeyID:     "rustfsadmin",
		SecretAccessKey: "rustfsadmin",
		Bucket:          "test-documents",
		UsePathStyle:    true,
	})
	if err != nil {
		t.Fatalf("failed to create S3 client: %v", err)
	}
	if err := s3Client.EnsureBucket(ctx); err != nil {
		t.Fatalf("failed to create bucket: %v", err)
	}

	port, err := getFreePort()
	if err != nil {
		t.Fatalf("failed to get free port: %v", err)
	}

	env := &E2ETestEnv{
		T:          t,
		Ctx:        ctx,
		PostgresC:  pgC,
		RustFSC:    s3C,
		Pool:       pool,
		S3Client:   s3Client,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}

	env.ServerURL, env.ServerCloser = env.startServer(port)
	return env
}

// Cleanup releases all resources
func (e *E2ETestEnv) Cleanup() {
	if e.ServerCloser != nil {
		e.ServerCloser()
	}
	if e.Pool != nil {
		e.Pool.Close()
	}
	if e.RustFSC != nil {
		e.RustFSC.Terminate(e.Ctx)
	}
	if e.PostgresC != nil {
		e.PostgresC.Terminate(e.Ctx)
	}
}

// Bootstrap creates a tenant and API key for testing
func (e *E2ETestEnv) Bootstrap() {
	tenantRepo := repository.NewTenantRepository(e.Pool)
	apiKeyRepo := repository.NewAPIKeyRepository(e.Pool)
	uuidGen := &service.DefaultUUIDGenerator{}
	tenantSvc := service.NewTenantService(tenantRepo, apiKeyRepo, uuidGen)

	tenant, err := tenantSvc.CreateTenant(e.Ctx, "E2E Test Tenant")
	if err != nil {
		e.T.Fatalf("failed to create tenant: %v", err)
	}
	e.TenantID = tenant.ID

	token, err := tenantSvc.CreateAPIKey(e.Ctx, tenant.ID, "e2e-test-key")
	if err != nil {
		e.T.Fatalf("failed to create API key: %v", err)
	}
	e.AuthToken = token
}

// TrackQuery seeds one unanswered-query row directly through the tracker.
func (e *E2ETestEnv) TrackQuery(question string, score float64) {
	if err := e.trackerSvc.Record(e.Ctx, e.TenantID, question, score); err != nil {
		e.T.Fatalf("failed to track query: %v", err)
	}
}

// APIResponse represents a standard API response
type APIResponse struct {
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error,omitempty"`
}

// Get performs a GET request
func (e *E2ETestEnv) Get(path, authToken string) (*APIResponse, error) {
	return e.doRequest("GET", path, nil, authToken)
}

// Post performs a POST request
func (e *E2ETestEnv) Post(path string, body interface{}, authToken string) (*APIResponse, error) {
	return e.doRequest("POST", path, body, authToken)
}

// Delete performs a DELETE request
func (e *E2ETestEnv) Delete(path, authToken string) (*APIResponse, error) {
	return e.doRequest("DELETE", path, nil, authToken)
}

func (e *E2ETestEnv) doRequest(method, path string, body interface{}, authToken string) (*APIResponse, error) {
	url := e.ServerURL + path

	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal body: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		return nil, err
	}

	if authToken != "" {
		req.Header.Set("Authorization", "Bearer "+authToken)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusNoContent {
		return &APIResponse{}, nil
	}

	var apiResp APIResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
		}
		return nil, err
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, apiResp.Error)
	}

	return &apiResp, nil
}

// UploadDocument performs a multipart document upload.
func (e *E2ETestEnv) UploadDocument(filename string, content []byte, authToken string) (*APIResponse, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(content); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequest("POST", e.ServerURL+"/documents", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+authToken)

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var apiResp APIResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, apiResp.Error)
	}
	return &apiResp, nil
}

// Chat posts one message to the public chat endpoint and collects the full
// event stream.
func (e *E2ETestEnv) Chat(tenantID, sessionID, message string) ([]agui.Event, error) {
	body, err := json.Marshal(map[string]string{
		"tenantId":  tenantID,
		"sessionId": sessionID,
		"message":   message,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequest("POST", e.ServerURL+"/chat", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
	}

	var events []agui.Event
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev agui.Event
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev); err != nil {
			return nil, fmt.Errorf("malformed event frame %q: %w", line, err)
		}
		events = append(events, ev)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

// WaitForDocumentStatus polls a document until it reaches the wanted status.
func (e *E2ETestEnv) WaitForDocumentStatus(docID, want string, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	var last string
	for time.Now().Before(deadline) {
		resp, err := e.Get("/documents/"+docID, e.AuthToken)
		if err == nil {
			var doc struct {
				Status string `json:"status"`
				Error  string `json:"error"`
			}
			if json.Unmarshal(resp.Data, &doc) == nil {
				last = doc.Status
				if doc.Status == want {
					return
				}
				if doc.Status == "failed" && want != "failed" {
					e.T.Fatalf("document %s failed during ingestion: %s", docID, doc.Error)
				}
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	e.T.Fatalf("document %s did not reach status %q within %v (last: %q)", docID, want, timeout, last)
}

// MinimalPDF builds a one-page PDF containing the given line of text. Offsets
// in the xref table are computed from the buffer, not hardcoded.
func MinimalPDF(text string) []byte {
	text = strings.NewReplacer("(", `\(`, ")", `\)`, `\`, `\\`).Replace(text)
	content := fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET", text)

	var buf bytes.Buffer
	offsets := make([]int, 6)

	buf.WriteString("%PDF-1.4\n")

	offsets[1] = buf.Len()
	buf.WriteString("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")

	offsets[2] = buf.Len()
	buf.WriteString("2 0 obj\n<< /Type /Pages /Kids [3 0 R] /Count 1 >>\nendobj\n")

	offsets[3] = buf.Len()
	buf.WriteString("3 0 obj\n<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents 4 0 R /Resources << /Font << /F1 5 0 R >> >> >>\nendobj\n")

	offsets[4] = buf.Len()
	fmt.Fprintf(&buf, "4 0 obj\n<< /Length %d >>\nstream\n%s\nendstream\nendobj\n", len(content), content)

	offsets[5] = buf.Len()
	buf.WriteString("5 0 obj\n<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>\nendobj\n")

	xrefStart := buf.Len()
	buf.WriteString("xref\n0 6\n")
	buf.WriteString("0000000000 65535 f \n")
	for i := 1; i <= 5; i++ {
		fmt.Fprintf(&buf, "%010d 00000 n \n", offsets[i])
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size 6 /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", xrefStart)

	return buf.Bytes()
}

// fakeEmbedder produces deterministic bag-of-words embeddings: texts sharing
// words score high on cosine similarity, disjoint texts score near zero.
type fakeEmbedder struct {
	dims int
}

func (f *fakeEmbedder) embed(text string) []float32 {
	vec := make([]float32, f.dims)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,!?;:()")
		if word == "" {
			continue
		}
		h := fnv.New32a()
		h.Write([]byte(word))
		vec[int(h.Sum32())%f.dims] += 1
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		vec[0] = 1
		return vec
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec
}

func (f *fakeEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return f.embed(text), nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = f.embed(t)
	}
	return out, nil
}

// fakeProvider streams a fixed answer in two deltas and completes suggestion
// requests with a static JSON array.
type fakeProvider struct{}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) StreamChat(ctx context.Context, systemPrompt, userMessage string) (genai.Stream, error) {
	return &fakeStream{deltas: []string{"Based on the documentation, ", "refunds are processed within thirty days."}}, nil
}

func (p *fakeProvider) Complete(ctx context.Context, systemPrompt, userMessage string) (string, error) {
	return `[{"question":"How do refunds work?","answer":"Refunds are processed within thirty days.","originalQuery":"how do refunds work"}]`, nil
}

type fakeStream struct {
	deltas []string
	pos    int
}

func (s *fakeStream) Recv() (string, error) {
	if s.pos >= len(s.deltas) {
		return "", io.EOF
	}
	d := s.deltas[s.pos]
	s.pos++
	return d, nil
}

func (s *fakeStream) Close() error { return nil }

// startServer wires the full service stack over real Postgres and S3 with fake
// model backends, and starts the ingestion worker.
func (e *E2ETestEnv) startServer(port int) (string, func()) {
	tenantRepo := repository.NewTenantRepository(e.Pool)
	apiKeyRepo := repository.NewAPIKeyRepository(e.Pool)
	documentRepo := repository.NewDocumentRepository(e.Pool)
	ingestJobRepo := repository.NewIngestJobRepository(e.Pool)
	vectorRepo := repository.NewVectorRepository(e.Pool)
	sessionRepo := repository.NewChatSessionRepository(e.Pool)
	turnRepo := repository.NewConversationTurnRepository(e.Pool)
	unansweredRepo := repository.NewUnansweredQueryRepository(e.Pool)
	faqRepo := repository.NewFaqRepository(e.Pool)
	txRunner := repository.NewTxRunner(e.Pool)

	uuidGen := &service.DefaultUUIDGenerator{}
	tenantSvc := service.NewTenantService(tenantRepo, apiKeyRepo, uuidGen)

	embedder := &fakeEmbedder{dims: 1536}
	provider := &fakeProvider{}

	segmenter := service.NewSegmenter(service.DefaultSegmenterConfig())
	extractor := &extract.PDFExtractor{}
	ingestionSvc := service.NewIngestionService(
		documentRepo, ingestJobRepo, vectorRepo, e.S3Client, extractor, embedder, segmenter, uuidGen,
	)

	policy := service.NewRetrievalPolicy(service.RetrievalPolicyConfig{
		SimilarityThreshold: 0.15,
		TrackScoreLow:       0.20,
		TrackScoreHigh:      0.65,
	})
	trackerSvc := service.NewTrackerService(txRunner, unansweredRepo, uuidGen)
	e.trackerSvc = trackerSvc
	chatSvc := service.NewChatService(
		sessionRepo, turnRepo, vectorRepo, faqRepo, embedder, provider, policy, trackerSvc, uuidGen, 5,
	)
	faqSvc := service.NewFaqService(faqRepo, uuidGen)
	suggestionSvc := service.NewSuggestionService(unansweredRepo, faqRepo, provider)
	analyticsSvc := service.NewAnalyticsService(documentRepo, sessionRepo, unansweredRepo, faqRepo)

	workerCtx, cancelWorker := context.WithCancel(e.Ctx)
	ingestProcessor := jobs.NewIngestWorker(ingestJobRepo, ingestionSvc)
	ingestWorker := jobs.NewWorker(ingestProcessor, 100*time.Millisecond)
	go ingestWorker.Start(workerCtx)

	router := server.NewRouter(server.RouterConfig{
		AuthValidator:    tenantSvc,
		ChatHandler:      handlers.NewChatHandler(chatSvc),
		DocumentHandler:  handlers.NewDocumentHandler(ingestionSvc),
		SessionHandler:   handlers.NewSessionHandler(chatSvc),
		AnalyticsHandler: handlers.NewAnalyticsHandler(analyticsSvc, trackerSvc, suggestionSvc),
		FaqHandler:       handlers.NewFaqHandler(faqSvc),
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			e.T.Logf("server error: %v", err)
		}
	}()

	serverURL := fmt.Sprintf("http://localhost:%d", port)
	waitForServer(e.T, serverURL, 10*time.Second)

	return serverURL, func() {
		cancelWorker()
		ingestWorker.Stop()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}
}

func waitForServer(t *testing.T, url string, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(url + "/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("server did not start within %v", timeout)
}

func getFreePort() (int, error) {
	addr, err := net.ResolveTCPAddr("tcp", "localhost:0")
	if err != nil {
		return 0, err
	}

	l, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}
