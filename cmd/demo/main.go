// Command demo exercises a running model server over both front ends.
//
// Usage:
//
//	demo [-rest http://localhost:8080] [-binary localhost:9000] [-mcp http://localhost:8080/mcp]
//	     [-user name -password secret] [-token t]
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rhuss/modelserve/pkg/api"
	"github.com/rhuss/modelserve/pkg/client"
)

func main() {
	restURL := flag.String("rest", "http://localhost:8080", "REST base URL (empty to skip)")
	binaryAddr := flag.String("binary", "localhost:9000", "binary protocol address (empty to skip)")
	mcpURL := flag.String("mcp", "", "MCP endpoint (empty to skip)")
	user := flag.String("user", "", "basic auth user")
	password := flag.String("password", "", "basic auth password")
	token := flag.String("token", "", "bearer token")
	flag.Parse()

	var opts []client.Option
	switch {
	case *token != "":
		opts = append(opts, client.WithToken(*token))
	case *user != "":
		opts = append(opts, client.WithBasicAuth(*user, *password))
	}
	opts = append(opts, client.WithTimeout(10*time.Second))

	ctx := context.Background()
	failed := false

	if *restURL != "" {
		fmt.Printf("=== REST %s ===\n", *restURL)
		c := client.NewREST(*restURL, opts...)
		failed = demo(ctx, c) || failed
		c.Close()
	}

	if *binaryAddr != "" {
		fmt.Printf("\n=== binary %s ===\n", *binaryAddr)
		c, err := client.DialBinary(ctx, *binaryAddr, opts...)
		if err != nil {
			fmt.Printf("dial failed: %v\n", err)
			os.Exit(1)
		}
		failed = demo(ctx, c) || failed
		c.Close()
	}

	if *mcpURL != "" {
		fmt.Printf("\n=== MCP %s ===\n", *mcpURL)
		c, err := client.DialMCP(ctx, *mcpURL, opts...)
		if err != nil {
			fmt.Printf("connect failed: %v\n", err)
			os.Exit(1)
		}
		failed = demo(ctx, c) || failed
		c.Close()
	}

	if failed {
		os.Exit(1)
	}
	fmt.Println("\n=== demo complete ===")
}

// demo runs every command once against c and reports whether any call
// failed unexpectedly.
func demo(ctx context.Context, c client.Client) bool {
	failed := false
	report := func(step string, err error) bool {
		if err != nil {
			fmt.Printf("    %s FAILED: %v (%s)\n", step, err, api.TypeOf(err))
			failed = true
			return false
		}
		return true
	}

	setosa := api.Sample{api.Float(5.1), api.Float(3.5), api.Float(1.4), api.Float(0.2)}
	virginica := api.Sample{api.Float(6.7), api.Float(3.0), api.Float(5.8), api.Float(2.2)}

	// 1. Server and model
	fmt.Println("[1] Server status:")
	if st, err := client.ServerStatus(ctx, c); report("server_status", err) {
		fmt.Printf("    pid=%d uptime=%ds versions=%v\n", st.PID(), st.Uptime(), st.Versions())
	}
	model, err := client.QueryModel(ctx, c)
	if !report("query_model", err) {
		return failed
	}
	fmt.Printf("    model=%s probabilistic=%v ranking=%v\n", model.Type(), model.Probabilistic(), model.Ranking())

	// 2. Predictions
	fmt.Println("\n[2] Predictions:")
	if p, err := client.Predict(ctx, c, setosa); report("predict_sample", err) {
		fmt.Printf("    %v -> %v\n", setosa, p)
	}
	if ps, err := client.PredictBatch(ctx, c, api.Dataset{setosa, virginica}); report("predict_samples", err) {
		fmt.Printf("    batch -> %v\n", ps)
	}

	// 3. Probabilities
	if model.Probabilistic() {
		fmt.Println("\n[3] Probabilities:")
		if dist, err := client.Proba(ctx, c, virginica); report("proba_sample", err) {
			fmt.Printf("    %v -> %v\n", virginica, dist)
		}
		if dists, err := client.ProbaBatch(ctx, c, api.Dataset{setosa, virginica}); report("proba_samples", err) {
			fmt.Printf("    batch -> %v\n", dists)
		}
	}

	// 4. Ranking
	if model.Ranking() {
		fmt.Println("\n[4] Ranking:")
		if s, err := client.Rank(ctx, c, setosa); report("rank_sample", err) {
			fmt.Printf("    %v -> %.4f\n", setosa, s)
		}
		if ss, err := client.Score(ctx, c, api.Dataset{setosa, virginica}); report("score", err) {
			fmt.Printf("    batch -> %v\n", ss)
		}
	}

	// 5. A sample the model rejects
	fmt.Println("\n[5] Rejected sample:")
	_, err = client.Predict(ctx, c, api.Sample{api.String("not a number")})
	fmt.Printf("    error type=%s message=%v\n", api.TypeOf(err), err)

	return failed
}
