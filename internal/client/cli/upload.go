package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/layerforge/layerforge/internal/netx"
)

// Upload sends a design file to object storage: a one-time ticket with a
// presigned URL is requested, the file is PUT there, and the ticket is
// committed to obtain a download link.
func (a *App) Upload(ctx context.Context, path string) {
	if !a.isLoggedIn() {
		fmt.Fprintln(a.out, "Log in first.")
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(a.out, "error reading %s: %v\n", path, err)
		return
	}

	ticket, err := a.api.CreateUpload(ctx)
	if err != nil {
		fmt.Fprintf(a.out, "error requesting upload: %v\n", err)
		return
	}

	if err := netx.UploadToPresignedURL(ctx, ticket.URL, data); err != nil {
		fmt.Fprintf(a.out, "error uploading: %v\n", err)
		return
	}

	downloadURL, err := a.api.CommitUpload(ctx, ticket.TicketID)
	if err != nil {
		fmt.Fprintf(a.out, "error committing upload: %v\n", err)
		return
	}

	fmt.Fprintf(a.out, "Uploaded %s\nDownload: %s\n", path, downloadURL)
}
