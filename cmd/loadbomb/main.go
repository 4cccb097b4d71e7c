package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
)

// Нагрузочный тест проведения партий: много одновременных запросов на один продукт.
// После прогона проверяет, что остатки компонентов не ушли в минус.

var (
	totalRequests int64
	created       int64
	rejected      int64 // 409: не хватает компонентов или конфликт
	failed        int64
)

type batchRequest struct {
	Lines []batchLine `json:"lines"`
	Notes string      `json:"notes"`
}

type batchLine struct {
	FinishedProductID string `json:"finished_product_id"`
	Quantity          string `json:"quantity"`
}

type item struct {
	ID              string          `json:"id"`
	SKU             string          `json:"sku"`
	QuantityInStock decimal.Decimal `json:"quantity_in_stock"`
}

type component struct {
	ComponentID string `json:"component_id"`
	Component   *item  `json:"component"`
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080/api/v1", "базовый URL API")
	productID := flag.String("product", "", "id готового продукта")
	quantity := flag.String("quantity", "1", "количество в одной партии")
	concurrency := flag.Int("c", 50, "количество одновременных горутин")
	requests := flag.Int("n", 500, "всего запросов")
	flag.Parse()

	if *productID == "" {
		fmt.Fprintln(os.Stderr, "❌ -product обязателен")
		os.Exit(2)
	}

	client := &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			MaxIdleConnsPerHost: *concurrency * 2,
			MaxIdleConns:        *concurrency * 4,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	payload, err := json.Marshal(batchRequest{
		Lines: []batchLine{{FinishedProductID: *productID, Quantity: *quantity}},
		Notes: "loadbomb",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ marshal: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("🚀 Нагрузочный тест проведения партий")
	fmt.Printf("📍 URL: %s/production-batches\n", *baseURL)
	fmt.Printf("👥 Concurrency: %d, запросов: %d\n", *concurrency, *requests)
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")

	before, err := fetchComponents(client, *baseURL, *productID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ components: %v\n", err)
		os.Exit(1)
	}

	jobs := make(chan struct{}, *requests)
	for i := 0; i < *requests; i++ {
		jobs <- struct{}{}
	}
	close(jobs)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		latencies = make([]time.Duration, 0, *requests)
	)
	start := time.Now()
	for i := 0; i < *concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range jobs {
				reqStart := time.Now()
				status := post(client, *baseURL+"/production-batches", payload)
				elapsed := time.Since(reqStart)

				atomic.AddInt64(&totalRequests, 1)
				switch {
				case status == http.StatusCreated:
					atomic.AddInt64(&created, 1)
				case status == http.StatusConflict:
					atomic.AddInt64(&rejected, 1)
				default:
					atomic.AddInt64(&failed, 1)
				}
				mu.Lock()
				latencies = append(latencies, elapsed)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	duration := time.Since(start)

	fmt.Printf("\n📊 Результаты за %v:\n", duration.Round(time.Millisecond))
	fmt.Printf("  ✅ Проведено (201): %d\n", created)
	fmt.Printf("  ⛔ Отклонено (409): %d\n", rejected)
	fmt.Printf("  ❌ Ошибки: %d\n", failed)
	fmt.Printf("  ⚡ RPS: %.1f\n", float64(totalRequests)/duration.Seconds())
	printLatencies(latencies)

	after, err := fetchComponents(client, *baseURL, *productID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ components: %v\n", err)
		os.Exit(1)
	}
	negative := false
	fmt.Println("\n📦 Остатки компонентов:")
	for id, was := range before {
		now := after[id]
		fmt.Printf("  %s: %s → %s\n", now.SKU, was.QuantityInStock, now.QuantityInStock)
		if now.QuantityInStock.IsNegative() {
			negative = true
		}
	}
	if negative {
		fmt.Println("❌ Обнаружен отрицательный остаток")
		os.Exit(1)
	}

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	fmt.Printf("\n💾 Память клиента: %.2f MB, горутин: %d\n", float64(m.Alloc)/1024/1024, runtime.NumGoroutine())
}

func post(client *http.Client, url string, payload []byte) int {
	resp, err := client.Post(url, "application/json", bytes.NewReader(payload))
	if err != nil {
		return 0
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode
}

func fetchComponents(client *http.Client, baseURL, productID string) (map[string]item, error) {
	resp, err := client.Get(fmt.Sprintf("%s/finished-products/%s/components", baseURL, productID))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var body struct {
		Components []component `json:"components"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}
	result := make(map[string]item, len(body.Components))
	for _, c := range body.Components {
		if c.Component != nil {
			result[c.ComponentID] = *c.Component
		}
	}
	return result, nil
}

func printLatencies(latencies []time.Duration) {
	if len(latencies) == 0 {
		return
	}
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
	pct := func(p float64) time.Duration {
		return latencies[int(float64(len(latencies)-1)*p)]
	}
	fmt.Printf("  ⏱️  Latency p50=%v p95=%v p99=%v max=%v\n",
		pct(0.50).Round(time.Microsecond), pct(0.95).Round(time.Microsecond),
		pct(0.99).Round(time.Microsecond), latencies[len(latencies)-1].Round(time.Microsecond))
}
