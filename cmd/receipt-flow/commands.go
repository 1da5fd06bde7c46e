package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/cheggaaa/pb/v3"
	"github.com/dustin/go-humanize"

	"github.com/zombor/receipt-workflow/internal/remote"
	"github.com/zombor/receipt-workflow/internal/workflow"
)

// ErrRejected is returned when the service refuses the uploaded file
var ErrRejected = errors.New("file rejected")

const progressTemplate = `{{counters . }} {{bar . }} {{percent . }} {{speed . }}`

// flowClient is the part of remote.Client the upload command needs
type flowClient interface {
	workflow.Remote
	SetProgress(fn remote.ProgressFunc)
}

// runUpload walks one document through upload, validation and processing.
// progress may be nil to disable the progress bar.
func runUpload(ctx context.Context, client flowClient, path string, out io.Writer, progress io.Writer) error {
	doc, err := remote.ReadDocument(path)
	if err != nil {
		return err
	}

	controller := workflow.NewController(client)
	if err := controller.SelectFile(doc); err != nil {
		return err
	}

	var bar *pb.ProgressBar
	if progress != nil {
		client.SetProgress(func(body io.Reader, size int64) io.Reader {
			bar = pb.New64(size)
			bar.Set(pb.Bytes, true)
			bar.SetTemplate(progressTemplate)
			bar.SetWriter(progress)
			bar.Start()
			return bar.NewProxyReader(body)
		})
		defer client.SetProgress(nil)
	}

	fmt.Fprintf(out, "Step 1/3: uploading %s (%s)\n", doc.Name, humanize.Bytes(uint64(len(doc.Data))))
	session, err := controller.SubmitUpload(ctx)
	if bar != nil {
		bar.Finish()
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "  file_id=%s file_name=%s\n", session.FileID, session.FileName)

	fmt.Fprintln(out, "Step 2/3: validating")
	session, err = controller.SubmitValidate(ctx)
	if errors.Is(err, workflow.ErrRejectedByService) {
		fmt.Fprintf(out, "  invalid: %s\n", session.Validation.InvalidReason)
		return fmt.Errorf("%w: %s", ErrRejected, session.Validation.InvalidReason)
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(out, "  valid")

	fmt.Fprintln(out, "Step 3/3: processing")
	session, err = controller.SubmitProcess(ctx)
	if err != nil {
		return err
	}

	printRecord(out, session.Record)
	return nil
}

func printRecord(out io.Writer, record *remote.Record) {
	if record.Message != "" {
		fmt.Fprintf(out, "  %s\n", record.Message)
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	if !record.ID.IsZero() {
		fmt.Fprintf(w, "  Receipt\t%s\n", record.ID)
	}
	fmt.Fprintf(w, "  Merchant\t%s\n", record.MerchantName)
	fmt.Fprintf(w, "  Purchased\t%s\n", remote.LocalTime(record.PurchasedAt))
	fmt.Fprintf(w, "  Total\t%s\n", remote.FormatAmount(record.TotalAmount))
	w.Flush()
}

// receiptReader is the part of remote.Client the read commands need
type receiptReader interface {
	ListReceipts(ctx context.Context) ([]remote.Receipt, error)
	GetReceipt(ctx context.Context, id string) (remote.Receipt, error)
	FileURL(filePath string) (string, error)
}

func runList(ctx context.Context, client receiptReader, out io.Writer) error {
	receipts, err := client.ListReceipts(ctx)
	if err != nil {
		return err
	}
	if len(receipts) == 0 {
		fmt.Fprintln(out, "No receipts found.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tMERCHANT\tTOTAL\tPURCHASED\tCREATED")
	for _, r := range receipts {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.MerchantName, remote.FormatAmount(r.TotalAmount),
			remote.LocalTime(r.PurchasedAt), humanize.Time(r.CreatedAt))
	}
	return w.Flush()
}

func runGet(ctx context.Context, client receiptReader, id string, out io.Writer) error {
	r, err := client.GetReceipt(ctx, id)
	if err != nil {
		return err
	}

	file := r.FilePath
	if file != "" {
		if u, err := client.FileURL(r.FilePath); err == nil {
			file = u
		}
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Receipt\t%s\n", r.ID)
	fmt.Fprintf(w, "Merchant\t%s\n", r.MerchantName)
	fmt.Fprintf(w, "Purchased\t%s\n", remote.LocalTime(r.PurchasedAt))
	fmt.Fprintf(w, "Total\t%s\n", remote.FormatAmount(r.TotalAmount))
	fmt.Fprintf(w, "File\t%s\n", file)
	fmt.Fprintf(w, "Created\t%s\n", remote.LocalTime(r.CreatedAt))
	fmt.Fprintf(w, "Updated\t%s\n", remote.LocalTime(r.UpdatedAt))
	return w.Flush()
}
