package cache

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/spaolacci/murmur3"

	"github.com/vibe-ir/woocommerce-gateway-vibe/internal/logger"
)

// Key kinds under the manager's namespace.
const (
	kindIndex        = "index"
	kindProductRules = "product_rules"
	kindPrice        = "price"
	kindCart         = "cart"
)

// Store is what Manager needs from the tiered cache.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) bool
	Delete(ctx context.Context, key string) bool
	ClearNamespace(ctx context.Context, prefix string) bool
}

// Manager maps pricing data onto cache keys and JSON payloads.
//
//	{ns}:index
//	{ns}:product_rules:{productID}
//	{ns}:price:{productID}:{digest(context)}
//	{ns}:cart:{digest(cart, context)}
type Manager struct {
	store     Store
	namespace string
	logger    *slog.Logger
}

func NewManager(store Store, namespace string, log *slog.Logger) *Manager {
	if store == nil {
		panic("critical error: cache store cannot be nil")
	}
	if namespace == "" {
		namespace = "vibe"
	}
	return &Manager{store: store, namespace: namespace, logger: logger.Component(log, "cache_manager")}
}

// Digest hashes parts into a fixed-width hex string. Parts are length-prefixed so
// ("ab","c") and ("a","bc") never collide structurally.
func Digest(parts ...string) string {
	h := murmur3.New128()
	for _, p := range parts {
		_, _ = h.Write([]byte(strconv.Itoa(len(p))))
		_, _ = h.Write([]byte{':'})
		_, _ = h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))
}

func (m *Manager) key(parts ...string) string {
	return m.namespace + ":" + strings.Join(parts, ":")
}

func (m *Manager) prefix(kind string) string {
	return m.namespace + ":" + kind + ":"
}

// IndexKey is the key of the compiled rule index.
func (m *Manager) IndexKey() string { return m.key(kindIndex) }

func (m *Manager) ProductRulesKey(productID int64) string {
	return m.key(kindProductRules, strconv.FormatInt(productID, 10))
}

// PriceKey is deterministic in the product id and the ordered context parts.
func (m *Manager) PriceKey(productID int64, contextParts ...string) string {
	return m.key(kindPrice, strconv.FormatInt(productID, 10), Digest(contextParts...))
}

func (m *Manager) CartKey(parts ...string) string {
	return m.key(kindCart, Digest(parts...))
}

func (m *Manager) getJSON(ctx context.Context, key string, dst any) bool {
	raw, ok := m.store.Get(ctx, key)
	if !ok {
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		// A payload written by an incompatible build; drop it so it is recomputed.
		m.logger.Warn("discarding undecodable cache entry", slog.String("key", key), slog.String("error", err.Error()))
		m.store.Delete(ctx, key)
		return false
	}
	return true
}

func (m *Manager) setJSON(ctx context.Context, key string, v any, ttl time.Duration) bool {
	raw, err := json.Marshal(v)
	if err != nil {
		m.logger.Error("cache value not serializable", slog.String("key", key), slog.String("error", err.Error()))
		return false
	}
	return m.store.Set(ctx, key, raw, ttl)
}

// GetCompiledIndex decodes the cached rule index into dst.
func (m *Manager) GetCompiledIndex(ctx context.Context, dst any) bool {
	return m.getJSON(ctx, m.IndexKey(), dst)
}

func (m *Manager) SetCompiledIndex(ctx context.Context, index any, ttl time.Duration) bool {
	return m.setJSON(ctx, m.IndexKey(), index, ttl)
}

func (m *Manager) DeleteCompiledIndex(ctx context.Context) bool {
	return m.store.Delete(ctx, m.IndexKey())
}

func (m *Manager) GetProductRules(ctx context.Context, productID int64, dst any) bool {
	return m.getJSON(ctx, m.ProductRulesKey(productID), dst)
}

func (m *Manager) SetProductRules(ctx context.Context, productID int64, ruleIDs any, ttl time.Duration) bool {
	return m.setJSON(ctx, m.ProductRulesKey(productID), ruleIDs, ttl)
}

func (m *Manager) GetDynamicPrice(ctx context.Context, key string, dst any) bool {
	return m.getJSON(ctx, key, dst)
}

func (m *Manager) SetDynamicPrice(ctx context.Context, key string, result any, ttl time.Duration) bool {
	return m.setJSON(ctx, key, result, ttl)
}

func (m *Manager) GetCartAnalysis(ctx context.Context, key string, dst any) bool {
	return m.getJSON(ctx, key, dst)
}

func (m *Manager) SetCartAnalysis(ctx context.Context, key string, analysis any, ttl time.Duration) bool {
	return m.setJSON(ctx, key, analysis, ttl)
}

func (m *Manager) ClearProductRules(ctx context.Context) bool {
	return m.store.ClearNamespace(ctx, m.prefix(kindProductRules))
}

func (m *Manager) ClearPrices(ctx context.Context) bool {
	return m.store.ClearNamespace(ctx, m.prefix(kindPrice))
}

func (m *Manager) ClearCartAnalyses(ctx context.Context) bool {
	return m.store.ClearNamespace(ctx, m.prefix(kindCart))
}

// ClearAll drops everything under the namespace, index included.
func (m *Manager) ClearAll(ctx context.Context) bool {
	return m.store.ClearNamespace(ctx, m.namespace+":")
}
