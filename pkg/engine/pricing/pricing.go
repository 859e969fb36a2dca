package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/pricing"
	"github.com/aws/aws-sdk-go-v2/service/pricing/types"
)

// PriceRecord is one cached hourly price.
type PriceRecord struct {
	Price     float64 `json:"price"`
	Timestamp int64   `json:"timestamp"`
}

// Client wraps the AWS Pricing API behind the Source interface.
type Client struct {
	logger    *slog.Logger
	svc       *pricing.Client
	cache     map[string]PriceRecord
	mu        sync.RWMutex
	cachePath string
	ttl       time.Duration
}

// NewClient initializes the pricing client. The Pricing API is global; it is
// always queried through us-east-1.
func NewClient(ctx context.Context, logger *slog.Logger, cacheDir string) (*Client, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cacheDir == "" {
		cacheDir = os.TempDir()
	}
	os.MkdirAll(cacheDir, 0755)

	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion("us-east-1"))
	if err != nil {
		return nil, err
	}

	c := &Client{
		logger:    logger,
		svc:       pricing.NewFromConfig(cfg),
		cache:     make(map[string]PriceRecord),
		cachePath: filepath.Join(cacheDir, "pricing.json"),
		ttl:       15 * 24 * time.Hour,
	}
	c.loadCache()
	return c, nil
}

func (c *Client) loadCache() {
	data, err := os.ReadFile(c.cachePath)
	if err == nil {
		json.Unmarshal(data, &c.cache)
	}
}

func (c *Client) saveCache() {
	data, err := json.MarshalIndent(c.cache, "", "  ")
	if err == nil {
		os.WriteFile(c.cachePath, data, 0644)
	}
}

// InstanceMonthly resolves an EC2 on-demand monthly price (730h/month).
func (c *Client) InstanceMonthly(ctx context.Context, region, instanceType string) (float64, bool) {
	hourly, err := c.cached(fmt.Sprintf("ec2-%s-%s", region, instanceType), func() (float64, error) {
		return c.fetchInstancePrice(ctx, region, instanceType)
	})
	if err != nil {
		c.logger.Debug("Pricing API lookup failed", "instance_type", instanceType, "error", err)
		return 0, false
	}
	return hourly * 730, true
}

// VolumeGBMonthly resolves an EBS per-GB-month price.
func (c *Client) VolumeGBMonthly(ctx context.Context, region, volumeType string) (float64, bool) {
	price, err := c.cached(fmt.Sprintf("ebs-%s-%s", region, volumeType), func() (float64, error) {
		return c.fetchVolumePrice(ctx, region, volumeType)
	})
	if err != nil {
		c.logger.Debug("Pricing API lookup failed", "volume_type", volumeType, "error", err)
		return 0, false
	}
	return price, true
}

// LoadBalancerMonthly always defers to the static table; the Pricing API's
// LB records mix base and LCU dimensions and are not worth a network call.
func (c *Client) LoadBalancerMonthly(ctx context.Context, region string) (float64, bool) {
	return 0, false
}

func (c *Client) cached(key string, fetch func() (float64, error)) (float64, error) {
	c.mu.RLock()
	record, ok := c.cache[key]
	c.mu.RUnlock()

	if ok && time.Since(time.Unix(record.Timestamp, 0)) < c.ttl {
		return record.Price, nil
	}

	price, err := fetch()
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	c.cache[key] = PriceRecord{Price: price, Timestamp: time.Now().Unix()}
	c.saveCache()
	c.mu.Unlock()

	return price, nil
}

func (c *Client) fetchInstancePrice(ctx context.Context, region, instanceType string) (float64, error) {
	filters := []types.Filter{
		termMatch("productFamily", "Compute Instance"),
		termMatch("serviceCode", "AmazonEC2"),
		termMatch("regionCode", region),
		termMatch("instanceType", instanceType),
		termMatch("tenancy", "Shared"),
		termMatch("operatingSystem", "Linux"),
		termMatch("preInstalledSw", "NA"),
	}

	out, err := c.svc.GetProducts(ctx, &pricing.GetProductsInput{
		ServiceCode: aws.String("AmazonEC2"),
		Filters:     filters,
		MaxResults:  aws.Int32(1),
	})
	if err != nil {
		return 0, err
	}
	if len(out.PriceList) == 0 {
		return 0, fmt.Errorf("no pricing found for %s %s", region, instanceType)
	}

	return parsePriceFromJSON(out.PriceList[0])
}

func (c *Client) fetchVolumePrice(ctx context.Context, region, volumeType string) (float64, error) {
	var volTypeVal string
	switch volumeType {
	case "gp2":
		volTypeVal = "General Purpose"
	case "gp3":
		volTypeVal = "General Purpose SSD (gp3)"
	case "io1", "io2":
		volTypeVal = "Provisioned IOPS SSD"
	case "st1":
		volTypeVal = "Throughput Optimized HDD"
	case "sc1":
		volTypeVal = "Cold HDD"
	case "standard":
		volTypeVal = "Magnetic"
	default:
		return 0, fmt.Errorf("unknown volume type %q", volumeType)
	}

	filters := []types.Filter{
		termMatch("productFamily", "Storage"),
		termMatch("serviceCode", "AmazonEC2"),
		termMatch("regionCode", region),
		termMatch("volumeType", volTypeVal),
	}

	out, err := c.svc.GetProducts(ctx, &pricing.GetProductsInput{
		ServiceCode: aws.String("AmazonEC2"),
		Filters:     filters,
		MaxResults:  aws.Int32(1),
	})
	if err != nil {
		return 0, err
	}
	if len(out.PriceList) == 0 {
		return 0, fmt.Errorf("no pricing found for %s %s", region, volumeType)
	}

	return parsePriceFromJSON(out.PriceList[0])
}

func termMatch(field, value string) types.Filter {
	return types.Filter{
		Type:  types.FilterTypeTermMatch,
		Field: aws.String(field),
		Value: aws.String(value),
	}
}

// priceDocument is the slice of a Pricing API product record we care about:
// the on-demand terms, keyed by offer code, each holding dimensions with a
// per-unit price by currency.
type priceDocument struct {
	Terms struct {
		OnDemand map[string]struct {
			PriceDimensions map[string]struct {
				PricePerUnit map[string]string `json:"pricePerUnit"`
			} `json:"priceDimensions"`
		} `json:"OnDemand"`
	} `json:"terms"`
}

func parsePriceFromJSON(doc string) (float64, error) {
	var pd priceDocument
	if err := json.Unmarshal([]byte(doc), &pd); err != nil {
		return 0, fmt.Errorf("decoding price document: %w", err)
	}

	for _, offer := range pd.Terms.OnDemand {
		for _, dim := range offer.PriceDimensions {
			usd, ok := dim.PricePerUnit["USD"]
			if !ok {
				continue
			}
			price, err := strconv.ParseFloat(usd, 64)
			if err != nil {
				return 0, fmt.Errorf("parsing price %q: %w", usd, err)
			}
			return price, nil
		}
	}
	return 0, fmt.Errorf("no on-demand USD price in document")
}
