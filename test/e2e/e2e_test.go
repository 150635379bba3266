//go:build e2e

package e2e

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/verdantlabs/verdant/internal/agui"
)

// TestE2E_Auth tests API key authentication against admin endpoints
func TestE2E_Auth(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()
	env.Bootstrap()

	t.Run("valid API key authenticates", func(t *testing.T) {
		resp, err := env.Get("/documents", env.AuthToken)
		require.NoError(t, err)

		var page struct {
			Items []interface{} `json:"items"`
		}
		require.NoError(t, json.Unmarshal(resp.Data, &page))
		assert.Empty(t, page.Items)
	})

	t.Run("missing API key returns 401", func(t *testing.T) {
		_, err := env.Get("/documents", "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "401")
	})

	t.Run("invalid API key returns 401", func(t *testing.T) {
		_, err := env.Get("/documents", "vrd_0000000000000000000000000000000000000000000000000000000000000000")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "401")
	})
}

// TestE2E_DocumentLifecycle uploads a PDF, waits for ingestion, lists and
// deletes it
func TestE2E_DocumentLifecycle(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()
	env.Bootstrap()

	pdfContent := MinimalPDF("Refunds are processed within thirty days after the request is approved by the billing team.")
	var docID string

	t.Run("upload queues document for ingestion", func(t *testing.T) {
		resp, err := env.UploadDocument("refund-policy.pdf", pdfContent, env.AuthToken)
		require.NoError(t, err)

		var doc struct {
			ID           string `json:"id"`
			TenantID     string `json:"tenant_id"`
			OriginalName string `json:"original_name"`
			Status       string `json:"status"`
		}
		require.NoError(t, json.Unmarshal(resp.Data, &doc))
		assert.NotEmpty(t, doc.ID)
		assert.Equal(t, env.TenantID, doc.TenantID)
		assert.Equal(t, "refund-policy.pdf", doc.OriginalName)
		assert.Equal(t, "processing", doc.Status)

		docID = doc.ID
	})

	t.Run("worker processes document to ready", func(t *testing.T) {
		env.WaitForDocumentStatus(docID, "ready", 15*time.Second)

		resp, err := env.Get("/documents/"+docID, env.AuthToken)
		require.NoError(t, err)

		var doc struct {
			Status     string `json:"status"`
			ChunkCount int    `json:"chunk_count"`
		}
		require.NoError(t, json.Unmarshal(resp.Data, &doc))
		assert.Equal(t, "ready", doc.Status)
		assert.Greater(t, doc.ChunkCount, 0)
	})

	t.Run("non-PDF upload is rejected", func(t *testing.T) {
		_, err := env.UploadDocument("notes.txt", []byte("plain text"), env.AuthToken)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "400")
	})

	t.Run("list includes the document", func(t *testing.T) {
		resp, err := env.Get("/documents", env.AuthToken)
		require.NoError(t, err)

		var page struct {
			Items []struct {
				ID string `json:"id"`
			} `json:"items"`
		}
		require.NoError(t, json.Unmarshal(resp.Data, &page))
		require.Len(t, page.Items, 1)
		assert.Equal(t, docID, page.Items[0].ID)
	})

	t.Run("delete removes document and vectors", func(t *testing.T) {
		_, err := env.Delete("/documents/"+docID, env.AuthToken)
		require.NoError(t, err)

		_, err = env.Get("/documents/"+docID, env.AuthToken)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "404")

		var count int
		row := env.Pool.QueryRow(env.Ctx, "SELECT COUNT(*) FROM vector_records WHERE document_id = $1", docID)
		require.NoError(t, row.Scan(&count))
		assert.Zero(t, count)
	})
}

// TestE2E_ChatFlow tests the full retrieve-and-generate loop over SSE
func TestE2E_ChatFlow(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()
	env.Bootstrap()

	pdfContent := MinimalPDF("Refunds are processed within thirty days after the request is approved by the billing team.")
	resp, err := env.UploadDocument("refund-policy.pdf", pdfContent, env.AuthToken)
	require.NoError(t, err)

	var doc struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &doc))
	env.WaitForDocumentStatus(doc.ID, "ready", 15*time.Second)

	var sessionID string

	t.Run("grounded question streams an answer with citations", func(t *testing.T) {
		events, err := env.Chat(env.TenantID, "", "How are refunds processed after a request is approved?")
		require.NoError(t, err)
		require.NotEmpty(t, events)

		assert.Equal(t, agui.EventRunStarted, events[0].Type)
		assert.Equal(t, agui.EventRunFinished, events[len(events)-1].Type)

		var sawStepStart, sawStepFinish, sawContent bool
		var answer string
		for _, ev := range events {
			switch ev.Type {
			case agui.EventStepStarted:
				sawStepStart = true
				assert.Equal(t, "rag_retrieval", ev.StepName)
			case agui.EventStepFinished:
				sawStepFinish = true
			case agui.EventTextMessageContent:
				sawContent = true
				answer += ev.Delta
			}
		}
		assert.True(t, sawStepStart)
		assert.True(t, sawStepFinish)
		assert.True(t, sawContent)
		assert.Contains(t, answer, "refunds are processed")

		var result struct {
			SessionID  string  `json:"sessionId"`
			Answerable bool    `json:"answerable"`
			Confidence float64 `json:"confidence"`
			Citations  []struct {
				DocumentID string `json:"documentId"`
			} `json:"citations"`
		}
		require.NoError(t, json.Unmarshal(events[len(events)-1].Result, &result))
		assert.True(t, result.Answerable)
		assert.Greater(t, result.Confidence, 0.0)
		require.NotEmpty(t, result.Citations)
		assert.Equal(t, doc.ID, result.Citations[0].DocumentID)

		sessionID = result.SessionID
	})

	t.Run("timestamps never decrease within a run", func(t *testing.T) {
		events, err := env.Chat(env.TenantID, "", "How are refunds processed?")
		require.NoError(t, err)

		var last int64
		for _, ev := range events {
			assert.GreaterOrEqual(t, ev.Timestamp, last)
			last = ev.Timestamp
		}
	})

	t.Run("unrelated question falls back without generation", func(t *testing.T) {
		events, err := env.Chat(env.TenantID, "", "zebra quantum harpsichord juggling")
		require.NoError(t, err)
		require.NotEmpty(t, events)

		last := events[len(events)-1]
		require.Equal(t, agui.EventRunFinished, last.Type)

		var result struct {
			Answerable bool `json:"answerable"`
		}
		require.NoError(t, json.Unmarshal(last.Result, &result))
		assert.False(t, result.Answerable)
	})

	t.Run("session history records the turns", func(t *testing.T) {
		require.NotEmpty(t, sessionID)

		// Turns persist off the request path; give the writer a moment.
		time.Sleep(500 * time.Millisecond)

		resp, err := env.Get("/sessions/"+sessionID, env.AuthToken)
		require.NoError(t, err)

		var detail struct {
			Turns []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"turns"`
		}
		require.NoError(t, json.Unmarshal(resp.Data, &detail))
		require.Len(t, detail.Turns, 2)
		assert.Equal(t, "user", detail.Turns[0].Role)
		assert.Equal(t, "assistant", detail.Turns[1].Role)
		assert.Contains(t, detail.Turns[1].Content, "refunds")
	})

	t.Run("chat with missing message returns 400 before streaming", func(t *testing.T) {
		_, err := env.Chat(env.TenantID, "", "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "400")
	})
}

// TestE2E_UnansweredWorkflow tests the tracker and FAQ feedback loop
func TestE2E_UnansweredWorkflow(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()
	env.Bootstrap()

	env.TrackQuery("Can I pay with cryptocurrency?", 0.42)
	env.TrackQuery("can i pay with cryptocurrency??", 0.51)
	env.TrackQuery("Do you ship to Antarctica?", 0.33)

	var cryptoID, shippingID string

	t.Run("repeated phrasings collapse into one pending row", func(t *testing.T) {
		resp, err := env.Get("/analytics/queries", env.AuthToken)
		require.NoError(t, err)

		var queries []struct {
			ID       string  `json:"id"`
			Question string  `json:"question"`
			Score    float64 `json:"score"`
			Count    int     `json:"count"`
			Status   string  `json:"status"`
		}
		require.NoError(t, json.Unmarshal(resp.Data, &queries))
		require.Len(t, queries, 2)

		for _, q := range queries {
			assert.Equal(t, "pending", q.Status)
			switch q.Question {
			case "Can I pay with cryptocurrency?":
				cryptoID = q.ID
				assert.Equal(t, 2, q.Count)
				assert.InDelta(t, 0.51, q.Score, 0.001)
			case "Do you ship to Antarctica?":
				shippingID = q.ID
				assert.Equal(t, 1, q.Count)
			default:
				t.Fatalf("unexpected query: %s", q.Question)
			}
		}
		require.NotEmpty(t, cryptoID)
		require.NotEmpty(t, shippingID)
	})

	t.Run("suggestions are drafted from pending queries", func(t *testing.T) {
		resp, err := env.Post("/analytics/suggestions/generate", nil, env.AuthToken)
		require.NoError(t, err)

		var suggestions []struct {
			Question string `json:"question"`
			Answer   string `json:"answer"`
		}
		require.NoError(t, json.Unmarshal(resp.Data, &suggestions))
		require.NotEmpty(t, suggestions)
		assert.Equal(t, "How do refunds work?", suggestions[0].Question)
	})

	t.Run("approve converts query into an FAQ entry", func(t *testing.T) {
		resp, err := env.Post("/analytics/queries/"+cryptoID+"/approve", map[string]string{
			"question": "Can I pay with cryptocurrency?",
			"answer":   "No, we accept card and bank transfer only.",
		}, env.AuthToken)
		require.NoError(t, err)

		var faq struct {
			ID       string `json:"id"`
			Question string `json:"question"`
			Active   bool   `json:"active"`
		}
		require.NoError(t, json.Unmarshal(resp.Data, &faq))
		assert.NotEmpty(t, faq.ID)
		assert.Equal(t, "Can I pay with cryptocurrency?", faq.Question)
		assert.True(t, faq.Active)

		// The query left the pending list.
		listResp, err := env.Get("/analytics/queries", env.AuthToken)
		require.NoError(t, err)
		var remaining []struct {
			ID string `json:"id"`
		}
		require.NoError(t, json.Unmarshal(listResp.Data, &remaining))
		require.Len(t, remaining, 1)
		assert.Equal(t, shippingID, remaining[0].ID)
	})

	t.Run("approving a converted query returns 400", func(t *testing.T) {
		_, err := env.Post("/analytics/queries/"+cryptoID+"/approve", map[string]string{
			"answer": "another answer",
		}, env.AuthToken)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "400")
	})

	t.Run("dismiss closes a pending query", func(t *testing.T) {
		_, err := env.Post("/analytics/queries/"+shippingID+"/dismiss", nil, env.AuthToken)
		require.NoError(t, err)

		resp, err := env.Get("/analytics/queries", env.AuthToken)
		require.NoError(t, err)
		var remaining []struct {
			ID string `json:"id"`
		}
		require.NoError(t, json.Unmarshal(resp.Data, &remaining))
		assert.Empty(t, remaining)
	})

	t.Run("overview reflects the tenant state", func(t *testing.T) {
		resp, err := env.Get("/analytics/overview", env.AuthToken)
		require.NoError(t, err)

		var overview struct {
			Documents      int `json:"documents"`
			Sessions       int `json:"sessions"`
			PendingQueries int `json:"pendingQueries"`
			ActiveFaqs     int `json:"activeFaqs"`
		}
		require.NoError(t, json.Unmarshal(resp.Data, &overview))
		assert.Zero(t, overview.Documents)
		assert.Zero(t, overview.PendingQueries)
		assert.Equal(t, 1, overview.ActiveFaqs)
	})
}

// TestE2E_FaqLifecycle tests direct FAQ management
func TestE2E_FaqLifecycle(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()
	env.Bootstrap()

	var faqID string

	t.Run("create FAQ entry", func(t *testing.T) {
		resp, err := env.Post("/faqs", map[string]string{
			"question": "What are your support hours?",
			"answer":   "Monday to Friday, 9am to 5pm CET.",
		}, env.AuthToken)
		require.NoError(t, err)

		var faq struct {
			ID       string `json:"id"`
			Question string `json:"question"`
			Active   bool   `json:"active"`
		}
		require.NoError(t, json.Unmarshal(resp.Data, &faq))
		assert.NotEmpty(t, faq.ID)
		assert.True(t, faq.Active)
		faqID = faq.ID
	})

	t.Run("list returns active entries", func(t *testing.T) {
		resp, err := env.Get("/faqs", env.AuthToken)
		require.NoError(t, err)

		var faqs []struct {
			ID string `json:"id"`
		}
		require.NoError(t, json.Unmarshal(resp.Data, &faqs))
		require.Len(t, faqs, 1)
		assert.Equal(t, faqID, faqs[0].ID)
	})

	t.Run("delete deactivates the entry", func(t *testing.T) {
		_, err := env.Delete("/faqs/"+faqID, env.AuthToken)
		require.NoError(t, err)

		resp, err := env.Get("/faqs", env.AuthToken)
		require.NoError(t, err)

		var faqs []struct {
			ID string `json:"id"`
		}
		require.NoError(t, json.Unmarshal(resp.Data, &faqs))
		assert.Empty(t, faqs)
	})
}
