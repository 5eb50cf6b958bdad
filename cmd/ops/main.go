// Command ops is the operator's tool for the LayerForge backend: it seeds
// admission proofs, toggles the signup gate, triggers catalog syncs, and
// mints identity tokens for local testing.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/layerforge/layerforge/internal/common"
	"github.com/layerforge/layerforge/internal/server/identity"
)

func usage() {
	fmt.Fprintln(os.Stderr, `Usage: ops <command> [flags]

Commands:
  seed-proof      register a crowdfunding backer (-handle, -code, -tier)
  set-admission   toggle the signup gate (-required)
  sync-catalog    pull the pricing catalog from the billing provider
  catalog-status  show the current catalog snapshot
  mint-token      mint an identity token for testing (-subject, -email, -name)

Environment:
  LAYERFORGE_OPS_SERVER    server base URL (default http://127.0.0.1:8080)
  LAYERFORGE_OPS_KEY       operator API key
  LAYERFORGE_IDENTITY_SECRET  signing secret for mint-token`)
	os.Exit(2)
}

func main() {
	if len(os.Args) < 2 {
		usage()
	}

	server := os.Getenv("LAYERFORGE_OPS_SERVER")
	if server == "" {
		server = "http://127.0.0.1:8080"
	}
	key := os.Getenv("LAYERFORGE_OPS_KEY")

	var err error
	switch os.Args[1] {
	case "seed-proof":
		fs := flag.NewFlagSet("seed-proof", flag.ExitOnError)
		handle := fs.String("handle", "", "backer handle")
		code := fs.String("code", "", "access code")
		tier := fs.String("tier", "", "pledge tier")
		_ = fs.Parse(os.Args[2:])
		err = call(server, key, http.MethodPost, "/api/v1/ops/proofs",
			map[string]string{"handle": *handle, "code": *code, "tier": *tier})
	case "set-admission":
		fs := flag.NewFlagSet("set-admission", flag.ExitOnError)
		required := fs.Bool("required", true, "whether signup requires a backer code")
		_ = fs.Parse(os.Args[2:])
		err = call(server, key, http.MethodPut, "/api/v1/ops/admission",
			map[string]bool{"required": *required})
	case "sync-catalog":
		err = call(server, key, http.MethodPost, "/api/v1/ops/catalog/sync", map[string]string{})
	case "catalog-status":
		err = call(server, key, http.MethodGet, "/api/v1/ops/catalog", nil)
	case "mint-token":
		err = mintToken(os.Args[2:])
	default:
		usage()
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "ops: %v\n", err)
		os.Exit(1)
	}
}

func call(server, key, method, path string, body any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequest(method, server+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(common.OperatorKeyHeaderName, key)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%s: %s", resp.Status, string(raw))
	}
	fmt.Println(string(raw))
	return nil
}

func mintToken(args []string) error {
	fs := flag.NewFlagSet("mint-token", flag.ExitOnError)
	subject := fs.String("subject", "", "identity subject")
	email := fs.String("email", "", "account email")
	name := fs.String("name", "", "display name")
	_ = fs.Parse(args)

	secret := os.Getenv("LAYERFORGE_IDENTITY_SECRET")
	if secret == "" {
		return fmt.Errorf("LAYERFORGE_IDENTITY_SECRET is not set")
	}
	if *subject == "" || *email == "" {
		return fmt.Errorf("-subject and -email are required")
	}

	token, err := identity.MintToken(&identity.Identity{
		Subject: *subject,
		Email:   *email,
		Name:    *name,
	}, []byte(secret))
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}
