package main

import (
	"bytes"
	"context"
	"net/http"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"

	"github.com/zombor/receipt-workflow/internal/remote"
	"github.com/zombor/receipt-workflow/internal/workflow"
)

var _ = Describe("receipt-flow", func() {
	var (
		server *ghttp.Server
		client *remote.Client
		out    *bytes.Buffer
		ctx    context.Context
		pdf    string
	)

	BeforeEach(func() {
		server = ghttp.NewServer()
		var err error
		client, err = remote.NewClient(server.URL())
		Expect(err).NotTo(HaveOccurred())
		out = &bytes.Buffer{}
		ctx = context.Background()

		pdf = filepath.Join(GinkgoT().TempDir(), "receipt.pdf")
		Expect(os.WriteFile(pdf, []byte("%PDF-1.4 receipt"), 0644)).To(Succeed())
	})

	AfterEach(func() {
		server.Close()
	})

	uploadHandler := ghttp.CombineHandlers(
		ghttp.VerifyRequest(http.MethodPost, "/upload"),
		ghttp.RespondWithJSONEncoded(http.StatusOK, map[string]any{"file_id": 1, "file_name": "receipt.pdf"}),
	)

	Describe("upload", func() {
		It("runs every step and prints the receipt", func() {
			server.AppendHandlers(
				uploadHandler,
				ghttp.CombineHandlers(
					ghttp.VerifyRequest(http.MethodPost, "/validate"),
					ghttp.VerifyJSON(`{"file_id": 1, "file_name": "receipt.pdf"}`),
					ghttp.RespondWithJSONEncoded(http.StatusOK, map[string]any{"is_valid": true}),
				),
				ghttp.CombineHandlers(
					ghttp.VerifyRequest(http.MethodPost, "/process"),
					ghttp.RespondWithJSONEncoded(http.StatusOK, map[string]any{
						"message":       "Receipt processed successfully",
						"id":            7,
						"merchant_name": "Acme",
						"purchased_at":  "2024-01-01T10:00:00Z",
						"total_amount":  42.5,
					}),
				),
			)

			progress := &bytes.Buffer{}
			Expect(runUpload(ctx, client, pdf, out, progress)).To(Succeed())
			Expect(out.String()).To(ContainSubstring("Step 1/3: uploading receipt.pdf"))
			Expect(out.String()).To(ContainSubstring("file_id=1"))
			Expect(out.String()).To(ContainSubstring("Acme"))
			Expect(out.String()).To(ContainSubstring("₹42.50"))
			Expect(progress.Len()).To(BeNumerically(">", 0))
		})

		It("stops at a rejection and reports the reason", func() {
			server.AppendHandlers(
				uploadHandler,
				ghttp.RespondWithJSONEncoded(http.StatusOK, map[string]any{"is_valid": false, "invalid_reason": "Invalid PDF format"}),
			)

			err := runUpload(ctx, client, pdf, out, nil)
			Expect(err).To(MatchError(ErrRejected))
			Expect(err).To(MatchError(ContainSubstring("Invalid PDF format")))
			Expect(server.ReceivedRequests()).To(HaveLen(2))
		})

		It("refuses files that are not PDFs without contacting the service", func() {
			txt := filepath.Join(GinkgoT().TempDir(), "notes.txt")
			Expect(os.WriteFile(txt, []byte("hi"), 0644)).To(Succeed())

			err := runUpload(ctx, client, txt, out, nil)
			Expect(err).To(MatchError(workflow.ErrInvalidInput))
			Expect(server.ReceivedRequests()).To(BeEmpty())
		})

		It("reports upload failures", func() {
			server.AppendHandlers(ghttp.RespondWithJSONEncoded(http.StatusInternalServerError, map[string]string{"error": "Failed to save file"}))

			err := runUpload(ctx, client, pdf, out, nil)
			Expect(err).To(MatchError(workflow.ErrTransportFailure))
			Expect(err).To(MatchError(ContainSubstring("Failed to save file")))
		})
	})

	Describe("list", func() {
		It("prints a table of receipts", func() {
			server.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest(http.MethodGet, "/receipts"),
				ghttp.RespondWithJSONEncoded(http.StatusOK, map[string]any{"receipts": []map[string]any{{
					"id":            1,
					"merchant_name": "Dummy Store",
					"purchased_at":  "2025-06-27T15:04:05Z",
					"total_amount":  100,
					"file_path":     "uploads/1_receipt.pdf",
					"created_at":    "2025-06-27T17:15:21Z",
					"updated_at":    "2025-06-27T17:15:21Z",
				}}}),
			))

			Expect(runList(ctx, client, out)).To(Succeed())
			Expect(out.String()).To(ContainSubstring("MERCHANT"))
			Expect(out.String()).To(ContainSubstring("Dummy Store"))
			Expect(out.String()).To(ContainSubstring("₹100.00"))
		})

		It("says when there are none", func() {
			server.AppendHandlers(ghttp.RespondWithJSONEncoded(http.StatusOK, map[string]any{"receipts": nil}))

			Expect(runList(ctx, client, out)).To(Succeed())
			Expect(out.String()).To(Equal("No receipts found.\n"))
		})
	})

	Describe("get", func() {
		It("prints the receipt with an absolute file link", func() {
			server.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest(http.MethodGet, "/receipts/2"),
				ghttp.RespondWithJSONEncoded(http.StatusOK, map[string]any{
					"id":            2,
					"merchant_name": "Dummy Store",
					"purchased_at":  "2025-06-27T15:04:05Z",
					"total_amount":  100,
					"file_path":     "uploads/2_venetian.pdf",
					"created_at":    "2025-06-27T05:19:50+05:30",
					"updated_at":    "2025-06-27T05:19:50+05:30",
				}),
			))

			Expect(runGet(ctx, client, "2", out)).To(Succeed())
			Expect(out.String()).To(ContainSubstring(server.URL() + "/uploads/2_venetian.pdf"))
		})

		It("returns the service error for unknown receipts", func() {
			server.AppendHandlers(ghttp.RespondWithJSONEncoded(http.StatusNotFound, map[string]string{"error": "Receipt not found"}))

			err := runGet(ctx, client, "9", out)
			Expect(err).To(MatchError(remote.ErrStatus))
		})
	})

	Describe("command line", func() {
		It("routes subcommands with the root flags", func() {
			server.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest(http.MethodGet, "/receipts"),
				ghttp.RespondWithJSONEncoded(http.StatusOK, map[string]any{"receipts": []any{}}),
			))

			root := newRootCommand(out, &bytes.Buffer{})
			Expect(root.ParseAndRun(ctx, []string{"--base-url", server.URL(), "list"})).To(Succeed())
			Expect(out.String()).To(ContainSubstring("No receipts found."))
		})

		It("rejects get without an id", func() {
			root := newRootCommand(out, &bytes.Buffer{})
			err := root.ParseAndRun(ctx, []string{"--base-url", server.URL(), "get"})
			Expect(err).To(MatchError(ContainSubstring("exactly one receipt id")))
		})
	})
})
