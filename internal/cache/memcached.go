package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"os"
	"strings"

	"github.com/bradfitz/gomemcache/memcache"
	gocache "github.com/patrickmn/go-cache"
	"github.com/proxydec/proxy-list-worker/config"
)

// DedupeClient answers whether a proxy id (ip:port) was already emitted
// recently. Listing sites repeat the same proxies page after page;
// without the seen-check every fetch cycle would re-send the whole list
// downstream.
type DedupeClient interface {
	MarkSeen(id string) bool // reports true when the id was not seen before
	Close()
}

type MemcachedClient struct {
	client     *memcache.Client
	localCache *gocache.Cache
	cfg        *config.CacheConfig
	log        *slog.Logger
}

func NewMemcachedClient(cacheConfig *config.CacheConfig, log *slog.Logger) *MemcachedClient {
	log.Info("connecting to memcached...")
	ss := new(memcache.ServerList)
	servers := strings.Split(cacheConfig.Servers, ",")
	err := ss.SetServers(servers...)
	if err != nil {
		log.Error("failed to set memcached servers.", slog.String("err", err.Error()))
		os.Exit(1)
	}
	c := &MemcachedClient{
		client:     memcache.NewFromSelector(ss),
		localCache: gocache.New(cacheConfig.TtlForSeen, cacheConfig.TtlForSeen),
		cfg:        cacheConfig,
		log:        log,
	}
	c.log.Info("pinging the memcached.")
	err = c.client.Ping()
	if err != nil {
		log.Error("connection to the memcached is failed.", slog.String("err", err.Error()))
		os.Exit(1)
	}
	c.log.Info("connected to memcached!")

	return c
}

// MarkSeen claims an id for the configured ttl window. The local cache
// spares a memcached round trip for ids this worker already claimed;
// memcached's atomic Add arbitrates between workers: ErrNotStored
// means another worker emitted the proxy first.
func (mc *MemcachedClient) MarkSeen(id string) bool {
	if _, found := mc.localCache.Get(id); found {
		return false
	}
	mc.localCache.Set(id, struct{}{}, gocache.DefaultExpiration)

	err := mc.client.Add(&memcache.Item{
		Key:        hashKey(id),
		Value:      []byte{1},
		Expiration: int32((mc.cfg.TtlForSeen).Seconds()),
	})
	if err != nil {
		if errors.Is(err, memcache.ErrNotStored) {
			mc.log.Debug("already seen.", slog.String("id", id))
			return false
		}
		mc.log.Warn("failed to mark id as seen. Assume unseen.", slog.String("id", id),
			slog.String("err", err.Error()))
	}
	return true
}

func (mc *MemcachedClient) Close() {
	mc.log.Info("closing memcached connection.")
	err := mc.client.Close()
	if err != nil {
		mc.log.Error("failed to close memcached connection.", slog.String("err", err.Error()))
	}
}

func hashKey(id string) string {
	hash := sha256.New()
	hash.Write([]byte(id))
	return hex.EncodeToString(hash.Sum(nil))
}
