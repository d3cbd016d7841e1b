// Command parity_check reads the same records through the console API and straight from the
// IMS backend and reports where the console's data payload drifts from the backend's.
package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"
)

// target pairs a console path with the backend path that serves the same records.
// Ignore lists keys the console adds on top of the backend record, e.g. canConvert.
type target struct {
	Console  string   `json:"console"`
	Backend  string   `json:"backend"`
	Ignore   []string `json:"ignore"`
	Critical bool     `json:"critical"`
}

type targetFile struct {
	Targets []target `json:"targets"`
}

type result struct {
	Target          target
	ConsoleStatus   int
	BackendStatus   int
	DataMatch       bool
	Error           error
	ConsoleDuration time.Duration
	BackendDuration time.Duration
}

func main() {
	var (
		consoleBase string
		backendBase string
		targetsPath string
		token       string
		timeout     time.Duration
	)

	flag.StringVar(&consoleBase, "console-base", "http://localhost:8080/api/v1", "Console API base URL")
	flag.StringVar(&backendBase, "backend-base", "http://localhost:5000/api", "IMS backend base URL")
	flag.StringVar(&targetsPath, "targets", filepath.Join("scripts", "parity_check", "targets.json"), "Path to JSON targets file")
	flag.StringVar(&token, "token", os.Getenv("IMS_TOKEN"), "Bearer token sent to both sides")
	flag.DurationVar(&timeout, "timeout", 5*time.Second, "HTTP client timeout")
	flag.Parse()

	targets, err := loadTargets(targetsPath)
	if err != nil {
		log.Fatalf("failed to load targets: %v", err)
	}

	client := &http.Client{Timeout: timeout}
	var (
		results  []result
		breaking int
		optional int
	)
	for _, t := range targets {
		res := check(client, consoleBase, backendBase, token, t)
		if res.Error != nil || res.ConsoleStatus != http.StatusOK || !res.DataMatch {
			if t.Critical {
				breaking++
			} else {
				optional++
			}
		}
		results = append(results, res)
	}

	printReport(os.Stdout, results)
	fmt.Printf("Breaking diffs: %d, Optional diffs: %d\n", breaking, optional)
	if breaking > 0 {
		os.Exit(1)
	}
}

func loadTargets(path string) ([]target, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var file targetFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, err
	}
	if len(file.Targets) == 0 {
		return nil, fmt.Errorf("no targets defined in %s", path)
	}
	return file.Targets, nil
}

func check(client *http.Client, consoleBase, backendBase, token string, tgt target) result {
	res := result{Target: tgt}

	consoleBody, status, dur, err := fetch(client, consoleBase, tgt.Console, token)
	res.ConsoleStatus, res.ConsoleDuration = status, dur
	if err != nil {
		res.Error = fmt.Errorf("console request failed: %w", err)
		return res
	}
	backendBody, status, dur, err := fetch(client, backendBase, tgt.Backend, token)
	res.BackendStatus, res.BackendDuration = status, dur
	if err != nil {
		res.Error = fmt.Errorf("backend request failed: %w", err)
		return res
	}

	consoleData, err := unwrap(consoleBody)
	if err != nil {
		res.Error = fmt.Errorf("decode console body: %w", err)
		return res
	}
	backendData, err := unwrap(backendBody)
	if err != nil {
		res.Error = fmt.Errorf("decode backend body: %w", err)
		return res
	}
	res.DataMatch = sameData(consoleData, backendData, tgt.Ignore)
	return res
}

func fetch(client *http.Client, base, path, token string) ([]byte, int, time.Duration, error) {
	if client == nil {
		return nil, 0, 0, errors.New("nil client")
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	req, err := http.NewRequest(http.MethodGet, strings.TrimRight(base, "/")+path, nil)
	if err != nil {
		return nil, 0, 0, err
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, 0, err
	}
	defer resp.Body.Close() //nolint:errcheck
	body, err := io.ReadAll(resp.Body)
	return body, resp.StatusCode, time.Since(start), err
}

// unwrap returns the "data" member when the body is an envelope, else the whole body.
func unwrap(body []byte) (interface{}, error) {
	var decoded interface{}
	if err := json.Unmarshal(bytes.TrimSpace(body), &decoded); err != nil {
		return nil, err
	}
	if obj, ok := decoded.(map[string]interface{}); ok {
		if data, exists := obj["data"]; exists {
			return data, nil
		}
	}
	return decoded, nil
}

func sameData(console, backend interface{}, ignore []string) bool {
	skip := make(map[string]struct{}, len(ignore))
	for _, key := range ignore {
		skip[key] = struct{}{}
	}
	console = normalize(console, skip)
	backend = normalize(backend, skip)
	return reflect.DeepEqual(console, backend)
}

func normalize(v interface{}, skip map[string]struct{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, v2 := range val {
			if _, ignored := skip[k]; ignored {
				continue
			}
			out[k] = normalize(v2, skip)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, v2 := range val {
			out[i] = normalize(v2, skip)
		}
		return out
	case float64:
		if val == float64(int64(val)) {
			return int64(val)
		}
	}
	return v
}

func printReport(w io.Writer, results []result) {
	fmt.Fprintln(w, "Console Parity Report")
	fmt.Fprintln(w, "=====================")
	for _, res := range results {
		state := "OK"
		switch {
		case res.Error != nil:
			state = "ERROR"
		case res.ConsoleStatus != http.StatusOK || !res.DataMatch:
			state = "DIFF"
		}
		fmt.Fprintf(w, "[%s] %s <> %s\n", state, res.Target.Console, res.Target.Backend)
		fmt.Fprintf(w, "  Console: %d (%s)  Backend: %d (%s)\n", res.ConsoleStatus, res.ConsoleDuration, res.BackendStatus, res.BackendDuration)
		if res.Error != nil {
			fmt.Fprintf(w, "  Error: %v\n", res.Error)
			continue
		}
		fmt.Fprintf(w, "  Data match: %t | Critical: %t\n", res.DataMatch, res.Target.Critical)
	}
}
