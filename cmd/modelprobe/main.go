// Command modelprobe verifies the model catalog against a live Ollama
// server: it lists the installed models, generates one probe embedding for
// each catalogued local-server model that is installed, and reports measured
// versus catalogued dimensionality. Run it before trusting a migration to a
// model you have not used yet.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/anhhai680/vecguard-mcp/internal/embedder"
	"github.com/anhhai680/vecguard-mcp/internal/registry"
	"github.com/anhhai680/vecguard-mcp/pkg/types"
)

func main() {
	host := flag.String("host", "", "Ollama host (default http://localhost:11434 or $OLLAMA_HOST)")
	timeout := flag.Duration("timeout", 60*time.Second, "total probe timeout")
	flag.Parse()

	log.SetOutput(os.Stderr)
	log.SetFlags(0)

	if *host == "" {
		*host = os.Getenv("OLLAMA_HOST")
	}
	if *host == "" {
		*host = embedder.DefaultOllamaHost
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	installed, err := listInstalledModels(ctx, *host)
	if err != nil {
		log.Fatalf("cannot reach Ollama at %s: %v", *host, err)
	}
	log.Printf("Ollama at %s reports %d installed model(s)", *host, len(installed))

	reg := registry.New()
	mismatches := 0
	probed := 0

	fmt.Printf("%-28s %10s %10s  %s\n", "MODEL", "CATALOG", "MEASURED", "RESULT")
	for _, d := range reg.All() {
		if d.Provider != types.ProviderLocalServer {
			continue
		}
		if !installed[d.Name] {
			fmt.Printf("%-28s %10d %10s  not installed\n", d.Name, d.Dimensions, "-")
			continue
		}

		measured, err := probeDimension(ctx, *host, d)
		if err != nil {
			fmt.Printf("%-28s %10d %10s  probe failed: %v\n", d.Name, d.Dimensions, "-", err)
			mismatches++
			continue
		}

		probed++
		if measured == d.Dimensions {
			fmt.Printf("%-28s %10d %10d  ok\n", d.Name, d.Dimensions, measured)
		} else {
			fmt.Printf("%-28s %10d %10d  MISMATCH\n", d.Name, d.Dimensions, measured)
			mismatches++
		}
	}

	if mismatches > 0 {
		log.Fatalf("%d model(s) disagree with the catalog", mismatches)
	}
	if probed == 0 {
		log.Printf("no catalogued model is installed; nothing was verified")
	}
}

// listInstalledModels queries GET /api/tags and returns the installed model
// names with their ":latest"-style tags stripped.
func listInstalledModels(ctx context.Context, host string) (map[string]bool, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", host+"/api/tags", nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("api error %d", resp.StatusCode)
	}

	var tags struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return nil, err
	}

	installed := make(map[string]bool, len(tags.Models))
	for _, m := range tags.Models {
		name := m.Name
		if i := strings.IndexByte(name, ':'); i >= 0 {
			name = name[:i]
		}
		installed[name] = true
	}
	return installed, nil
}

// probeDimension embeds a short probe text and returns the vector width the
// model actually produced. The embedder's own drift check is bypassed on
// purpose: measuring the drift is the point here.
func probeDimension(ctx context.Context, host string, d types.ModelDescriptor) (int, error) {
	body, err := json.Marshal(map[string]string{
		"model":  d.Name,
		"prompt": "dimensionality probe",
	})
	if err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", host+"/api/embeddings", strings.NewReader(string(body)))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("api error %d", resp.StatusCode)
	}

	var embedResp struct {
		Embedding []float64 `json:"embedding"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&embedResp); err != nil {
		return 0, err
	}
	return len(embedResp.Embedding), nil
}
