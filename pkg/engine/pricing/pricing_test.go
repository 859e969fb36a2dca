package pricing

import (
	"errors"
	"path/filepath"
	"testing"
	"time"
)

const samplePriceJSON = `{
  "product": {"sku": "ABC123"},
  "terms": {
    "OnDemand": {
      "ABC123.JRTCKXETXF": {
        "priceDimensions": {
          "ABC123.JRTCKXETXF.6YS6EN2CT7": {
            "pricePerUnit": {"USD": "0.0416000000"}
          }
        }
      }
    }
  }
}`

func TestParsePriceFromJSON(t *testing.T) {
	price, err := parsePriceFromJSON(samplePriceJSON)

	if err != nil {
		t.Fatalf("parsePriceFromJSON: %v", err)
	}
	if price != 0.0416 {
		t.Errorf("price = %v, want 0.0416", price)
	}
}

func TestParsePriceFromJSONMissingTerms(t *testing.T) {
	if _, err := parsePriceFromJSON(`{"terms":{}}`); err == nil {
		t.Error("expected error for missing OnDemand terms")
	}
}

func TestCacheHitSkipsFetch(t *testing.T) {
	// 1. Setup: a fresh record already in the cache.
	c := &Client{
		cache: map[string]PriceRecord{
			"ec2-us-east-1-t3.medium": {Price: 0.0416, Timestamp: time.Now().Unix()},
		},
		cachePath: filepath.Join(t.TempDir(), "pricing.json"),
		ttl:       15 * 24 * time.Hour,
	}

	// 2. Execute: the fetch closure must never run.
	price, err := c.cached("ec2-us-east-1-t3.medium", func() (float64, error) {
		t.Fatal("fetch called despite cache hit")
		return 0, nil
	})

	// 3. Assert
	if err != nil || price != 0.0416 {
		t.Errorf("got %v, %v", price, err)
	}
}

func TestCacheExpiryTriggersFetch(t *testing.T) {
	// 1. Setup: a record past the 15-day TTL.
	stale := time.Now().Add(-16 * 24 * time.Hour).Unix()
	c := &Client{
		cache: map[string]PriceRecord{
			"ec2-us-east-1-t3.medium": {Price: 0.99, Timestamp: stale},
		},
		cachePath: filepath.Join(t.TempDir(), "pricing.json"),
		ttl:       15 * 24 * time.Hour,
	}

	// 2. Execute
	fetched := false
	price, err := c.cached("ec2-us-east-1-t3.medium", func() (float64, error) {
		fetched = true
		return 0.0416, nil
	})

	// 3. Assert: the stale price is replaced and re-persisted.
	if err != nil {
		t.Fatal(err)
	}
	if !fetched {
		t.Error("stale cache entry not refreshed")
	}
	if price != 0.0416 {
		t.Errorf("price = %v, want refreshed value", price)
	}
	if c.cache["ec2-us-east-1-t3.medium"].Price != 0.0416 {
		t.Error("cache not updated")
	}
}

func TestCacheFetchFailurePropagates(t *testing.T) {
	c := &Client{
		cache:     map[string]PriceRecord{},
		cachePath: filepath.Join(t.TempDir(), "pricing.json"),
		ttl:       time.Hour,
	}

	_, err := c.cached("missing", func() (float64, error) {
		return 0, errors.New("throttled")
	})

	if err == nil {
		t.Error("fetch failure swallowed")
	}
	if len(c.cache) != 0 {
		t.Error("failed fetch cached")
	}
}
