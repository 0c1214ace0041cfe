package regbloom

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/bits-and-blooms/bitset"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/regbloom/regbloom/redisclients"
)

// offsets per BITFIELD command when dumping a snapshot
const setBitsBatchSize = 128

type storeMeta struct {
	FilterLength uint     `json:"filter_length"`
	Salts        []string `json:"salts"`
}

// RedisStore persists built filter snapshots in Redis and lets remote
// consumers run membership checks against the stored bitmap without
// pulling it down. The bit vector lives under `<cachePrefix>|bits` as a
// plain Redis bitmap, the length and salts under `<cachePrefix>|meta`;
// every successful save is announced on the cachePrefix pubsub channel.
type RedisStore struct {
	redisClient redisclients.RedisClient
	digester    Digester
	cachePrefix string
	hooks       *Hooks
	logger      Logger

	mu   sync.RWMutex
	meta *storeMeta
}

func NewRedisStore(redisClient redisclients.RedisClient, cachePrefix string) *RedisStore {
	return NewRedisStoreWithDigester(redisClient, cachePrefix, NewSHA1Digester())
}

func NewRedisStoreWithDigester(redisClient redisclients.RedisClient, cachePrefix string, digester Digester) *RedisStore {
	return &RedisStore{
		redisClient: redisClient,
		digester:    digester,
		cachePrefix: cachePrefix,
		hooks:       NewHooks(),
		logger:      StdLogger(nil),
	}
}

func (rs *RedisStore) SetHooks(hooks *Hooks) {
	rs.hooks = hooks
}

func (rs *RedisStore) SetLogger(logger Logger) {
	rs.logger = logger
}

// Save replaces the stored snapshot with the given one. The previous
// bitmap is deleted together with the meta rewrite, then the one-bits are
// dumped in pipelined BITFIELD batches, then the update is published.
func (rs *RedisStore) Save(ctx context.Context, snapshot Snapshot) error {
	rs.hooks.Before(SnapshotSave, rs.cachePrefix)

	meta := &storeMeta{
		FilterLength: snapshot.FilterLength,
		Salts:        snapshot.Salts,
	}
	metaData, marshalErr := json.Marshal(meta)
	if marshalErr != nil {
		err := errors.Wrap(marshalErr, "snapshot meta serialization failed")
		rs.hooks.AfterFail(SnapshotSave, err)
		return err
	}

	if execErr := rs.redisClient.Pipeliner(ctx).
		Del(rs.bitsKey()).
		Set(rs.metaKey(), metaData).
		Exec(); execErr != nil {
		err := errors.Wrap(execErr, "snapshot meta save failed")
		rs.hooks.AfterFail(SnapshotSave, err)
		return err
	}

	var batchErr *multierror.Error
	batch := make([]uint64, 0, setBitsBatchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		if execErr := rs.redisClient.Pipeliner(ctx).
			SetBits(rs.bitsKey(), batch...).
			Exec(); execErr != nil {
			batchErr = multierror.Append(batchErr, errors.Wrap(execErr, "snapshot bits save failed"))
		}
		batch = batch[:0]
	}
	for offset, found := snapshot.Bits.NextSet(0); found; offset, found = snapshot.Bits.NextSet(offset + 1) {
		batch = append(batch, uint64(offset))
		if len(batch) == setBitsBatchSize {
			flush()
		}
	}
	flush()

	if err := batchErr.ErrorOrNil(); err != nil {
		rs.hooks.AfterFail(SnapshotSave, err)
		return err
	}

	if execErr := rs.redisClient.Pipeliner(ctx).
		Publish(rs.cachePrefix, []byte("updated")).
		Exec(); execErr != nil {
		err := errors.Wrap(execErr, "snapshot update publishing failed")
		rs.hooks.AfterFail(SnapshotSave, err)
		return err
	}

	rs.cacheMeta(meta)
	rs.logger("bloom filter snapshot saved under", rs.cachePrefix)
	rs.hooks.AfterSuccess(SnapshotSave, snapshot.FilterLength)
	return nil
}

// Load reconstructs the stored snapshot. The meta record is always
// refetched so that a snapshot saved by another process is never paired
// with a previously cached length or salt set.
func (rs *RedisStore) Load(ctx context.Context) (Snapshot, error) {
	rs.hooks.Before(SnapshotLoad, rs.cachePrefix)

	meta, metaErr := rs.fetchMeta(ctx)
	if metaErr != nil {
		rs.hooks.AfterFail(SnapshotLoad, metaErr)
		return Snapshot{}, metaErr
	}

	bitmap, getErr := rs.redisClient.Get(ctx, rs.bitsKey())
	if getErr != nil {
		err := errors.Wrap(getErr, "snapshot bits load failed")
		rs.hooks.AfterFail(SnapshotLoad, err)
		return Snapshot{}, err
	}

	snapshot := Snapshot{
		FilterLength: meta.FilterLength,
		Salts:        meta.Salts,
		Bits:         bitmapToBitSet(bitmap, meta.FilterLength),
	}
	rs.logger("bloom filter snapshot loaded from", rs.cachePrefix, "with", snapshot.Bits.Count(), "bits set")
	rs.hooks.AfterSuccess(SnapshotLoad, snapshot.FilterLength)
	return snapshot, nil
}

// Test checks key membership against the bitmap stored in Redis. The
// key's offsets are derived locally from the stored length and salts,
// only the bit reads go over the wire.
func (rs *RedisStore) Test(ctx context.Context, key string) (bool, error) {
	rs.hooks.Before(SnapshotTest, key)

	meta, metaErr := rs.loadMeta(ctx)
	if metaErr != nil {
		rs.hooks.AfterFail(SnapshotTest, metaErr)
		return false, metaErr
	}
	if len(meta.Salts) == 0 || meta.FilterLength == 0 {
		err := errors.Wrap(ErrConfiguration, "stored snapshot has no salts or length")
		rs.hooks.AfterFail(SnapshotTest, err)
		return false, err
	}

	canonical := canonicalKey(rs.digester, key)
	offsets := make([]uint64, 0, len(meta.Salts))
	for _, salt := range meta.Salts {
		offsets = append(offsets, uint64(bitOffset(rs.digester, canonical, salt, meta.FilterLength)))
	}

	isSet, checkErr := rs.redisClient.CheckBits(ctx, rs.bitsKey(), offsets...)
	if checkErr != nil {
		err := errors.Wrap(checkErr, "snapshot bits check failed")
		rs.hooks.AfterFail(SnapshotTest, err)
		return false, err
	}
	rs.hooks.AfterSuccess(SnapshotTest, isSet)
	return isSet, nil
}

// OnBits returns the population count of the stored bitmap.
func (rs *RedisStore) OnBits(ctx context.Context) (uint, error) {
	count, err := rs.redisClient.CountBits(ctx, rs.bitsKey())
	if err != nil {
		return 0, errors.Wrap(err, "snapshot bits count failed")
	}
	return uint(count), nil
}

// Subscribe delivers a message for every snapshot saved under this
// store's prefix, from this or any other process. Every delivery drops
// the cached meta record first, so a subsequent Test or Load picks up
// the saved length and salts. Consumers typically re-Load on each
// message.
func (rs *RedisStore) Subscribe(ctx context.Context) (<-chan string, error) {
	messages, listenErr := rs.redisClient.Listen(ctx, rs.cachePrefix)
	if listenErr != nil {
		return nil, errors.Wrap(listenErr, "snapshot updates subscription failed")
	}
	updates := make(chan string, cap(messages))
	go func() {
		for message := range messages {
			rs.invalidateMeta()
			updates <- message
		}
		close(updates)
	}()
	return updates, nil
}

func (rs *RedisStore) loadMeta(ctx context.Context) (*storeMeta, error) {
	rs.mu.RLock()
	meta := rs.meta
	rs.mu.RUnlock()
	if meta != nil {
		return meta, nil
	}
	return rs.fetchMeta(ctx)
}

func (rs *RedisStore) fetchMeta(ctx context.Context) (*storeMeta, error) {
	metaData, getErr := rs.redisClient.Get(ctx, rs.metaKey())
	if getErr != nil {
		return nil, errors.Wrap(getErr, "snapshot meta load failed")
	}
	meta := &storeMeta{}
	if unmarshalErr := json.Unmarshal(metaData, meta); unmarshalErr != nil {
		return nil, errors.Wrap(unmarshalErr, "snapshot meta deserialization failed")
	}
	rs.cacheMeta(meta)
	return meta, nil
}

func (rs *RedisStore) cacheMeta(meta *storeMeta) {
	rs.mu.Lock()
	rs.meta = meta
	rs.mu.Unlock()
}

func (rs *RedisStore) invalidateMeta() {
	rs.mu.Lock()
	rs.meta = nil
	rs.mu.Unlock()
}

func (rs *RedisStore) metaKey() string {
	return rs.cachePrefix + "|meta"
}

func (rs *RedisStore) bitsKey() string {
	return rs.cachePrefix + "|bits"
}

// bitmapToBitSet converts a raw Redis bitmap (SETBIT addressing: bit 0 is
// the most significant bit of the first byte) into a bitset of bitsCount
// bits.
func bitmapToBitSet(bitmap []byte, bitsCount uint) *bitset.BitSet {
	bits := bitset.New(bitsCount)
	for byteIdx, b := range bitmap {
		for bitIdx := uint(0); bitIdx < 8; bitIdx++ {
			if b&(1<<(7-bitIdx)) == 0 {
				continue
			}
			offset := uint(byteIdx)*8 + bitIdx
			if offset < bitsCount {
				bits.Set(offset)
			}
		}
	}
	return bits
}
