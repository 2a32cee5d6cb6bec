// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package host

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"github.com/vechain/cap9/cache"
	"github.com/vechain/cap9/cap9"
	"github.com/vechain/cap9/kv"
	"github.com/vechain/cap9/log"
	"github.com/vechain/cap9/lvldb"
	"github.com/vechain/cap9/metrics"
	"github.com/vechain/cap9/stackedmap"
)

var logger = log.WithContext("pkg", "host")

var (
	metricCommits      = metrics.LazyLoadCounter("host_commits_count")
	metricCommitWrites = metrics.LazyLoadCounterVec("host_commit_writes_count", []string{"kind"})
)

const (
	storageBucket = kv.Bucket("s")
	balanceBucket = kv.Bucket("b")
	logBucket     = kv.Bucket("l")
	metaBucket    = kv.Bucket("m")

	defaultCacheSize = 4096
)

var logCountMetaKey = []byte("log-count")

// keys of the stacked map.
type (
	storageKey  cap9.Bytes32
	balanceKey  cap9.Address
	logKey      uint64
	logCountKey struct{}
)

// Options options for creating a State.
type Options struct {
	// CacheSize is the number of committed storage words kept in memory.
	CacheSize int
}

var _ Host = (*State)(nil)

// State is a Host backed by a kv store. All changes are journaled in memory
// until Commit writes them in one batch.
// It is not safe for concurrent writes.
type State struct {
	self     cap9.Address
	store    kv.Store
	programs map[cap9.Address]Program
	cache    *cache.LRU[cap9.Bytes32, cap9.Bytes32]
	sm       *stackedmap.StackedMap[any, any]
}

// New creates a State for the kernel deployed at self.
func New(store kv.Store, self cap9.Address, opts Options) (*State, error) {
	if opts.CacheSize <= 0 {
		opts.CacheSize = defaultCacheSize
	}
	c, err := cache.NewLRU[cap9.Bytes32, cap9.Bytes32](opts.CacheSize)
	if err != nil {
		return nil, errors.Wrap(err, "new storage cache")
	}
	s := &State{
		self:     self,
		store:    store,
		programs: make(map[cap9.Address]Program),
		cache:    c,
	}
	s.sm = stackedmap.New(s.cacheGetter)
	return s, nil
}

// NewMem creates a State over an in-memory level db.
func NewMem(self cap9.Address) (*State, error) {
	db, err := lvldb.NewMem()
	if err != nil {
		return nil, err
	}
	return New(db, self, Options{})
}

// cacheGetter implements stackedmap.MapGetter.
func (s *State) cacheGetter(key any) (any, bool, error) {
	switch k := key.(type) {
	case storageKey:
		v, err := s.cache.GetOrLoad(cap9.Bytes32(k), s.loadStorage)
		if err != nil {
			return nil, false, err
		}
		return v, true, nil
	case balanceKey:
		v, err := s.loadBalance(cap9.Address(k))
		if err != nil {
			return nil, false, err
		}
		return v, true, nil
	case logKey:
		l, err := s.loadLog(uint64(k))
		if err != nil {
			return nil, false, err
		}
		return l, true, nil
	case logCountKey:
		n, err := s.loadLogCount()
		if err != nil {
			return nil, false, err
		}
		return n, true, nil
	}
	panic(fmt.Errorf("unexpected key type %+v", key))
}

func (s *State) loadStorage(key cap9.Bytes32) (cap9.Bytes32, error) {
	data, err := storageBucket.NewGetter(s.store).Get(key[:])
	if err != nil {
		if s.store.IsNotFound(err) {
			return cap9.Bytes32{}, nil
		}
		return cap9.Bytes32{}, errors.Wrap(err, "load storage")
	}
	return cap9.BytesToBytes32(data), nil
}

func (s *State) loadBalance(addr cap9.Address) (*uint256.Int, error) {
	data, err := balanceBucket.NewGetter(s.store).Get(addr[:])
	if err != nil {
		if s.store.IsNotFound(err) {
			return new(uint256.Int), nil
		}
		return nil, errors.Wrap(err, "load balance")
	}
	var v uint256.Int
	if err := rlp.DecodeBytes(data, &v); err != nil {
		return nil, errors.Wrap(err, "decode balance")
	}
	return &v, nil
}

func (s *State) loadLog(seq uint64) (*Log, error) {
	data, err := logBucket.NewGetter(s.store).Get(logSeqKey(seq))
	if err != nil {
		return nil, errors.Wrap(err, "load log")
	}
	var l Log
	if err := rlp.DecodeBytes(data, &l); err != nil {
		return nil, errors.Wrap(err, "decode log")
	}
	return &l, nil
}

func (s *State) loadLogCount() (uint64, error) {
	data, err := metaBucket.NewGetter(s.store).Get(logCountMetaKey)
	if err != nil {
		if s.store.IsNotFound(err) {
			return 0, nil
		}
		return 0, errors.Wrap(err, "load log count")
	}
	if len(data) != 8 {
		return 0, errors.New("corrupted log count")
	}
	return binary.BigEndian.Uint64(data), nil
}

func logSeqKey(seq uint64) []byte {
	var k [8]byte
	binary.BigEndian.PutUint64(k[:], seq)
	return k[:]
}

// Address returns the kernel address.
func (s *State) Address() cap9.Address {
	return s.self
}

// Read returns the storage word at key. Unwritten words are zero.
func (s *State) Read(key cap9.Bytes32) (cap9.Bytes32, error) {
	v, _, err := s.sm.Get(storageKey(key))
	if err != nil {
		return cap9.Bytes32{}, err
	}
	return v.(cap9.Bytes32), nil
}

// Write sets the storage word at key.
func (s *State) Write(key, value cap9.Bytes32) error {
	s.sm.Put(storageKey(key), value)
	return nil
}

// Balance returns the balance of addr.
func (s *State) Balance(addr cap9.Address) (*uint256.Int, error) {
	v, _, err := s.sm.Get(balanceKey(addr))
	if err != nil {
		return nil, err
	}
	return new(uint256.Int).Set(v.(*uint256.Int)), nil
}

// SetBalance sets the balance of addr.
func (s *State) SetBalance(addr cap9.Address, balance *uint256.Int) {
	s.sm.Put(balanceKey(addr), new(uint256.Int).Set(balance))
}

// Deploy installs a program at addr.
func (s *State) Deploy(addr cap9.Address, prog Program) {
	s.programs[addr] = prog
}

// HasCode reports whether a program is deployed at addr.
func (s *State) HasCode(addr cap9.Address) (bool, error) {
	_, ok := s.programs[addr]
	return ok, nil
}

// Invoke runs the program at addr. Effects of a failing program are reverted.
func (s *State) Invoke(addr cap9.Address, env Env, input []byte) ([]byte, error) {
	prog, ok := s.programs[addr]
	if !ok {
		return nil, errors.WithMessage(ErrNoCode, addr.String())
	}
	checkpoint := s.Checkpoint()
	out, err := prog(env, input)
	if err != nil {
		s.RevertTo(checkpoint)
		return nil, err
	}
	return out, nil
}

// Log appends an event.
func (s *State) Log(topics []cap9.Bytes32, data []byte) error {
	v, _, err := s.sm.Get(logCountKey{})
	if err != nil {
		return err
	}
	n := v.(uint64)
	s.sm.Put(logKey(n), &Log{
		Topics: append([]cap9.Bytes32(nil), topics...),
		Data:   append([]byte(nil), data...),
	})
	s.sm.Put(logCountKey{}, n+1)
	return nil
}

// Logs returns all events, committed ones first.
func (s *State) Logs() ([]*Log, error) {
	v, _, err := s.sm.Get(logCountKey{})
	if err != nil {
		return nil, err
	}
	n := v.(uint64)
	logs := make([]*Log, 0, n)
	for i := uint64(0); i < n; i++ {
		l, _, err := s.sm.Get(logKey(i))
		if err != nil {
			return nil, err
		}
		logs = append(logs, l.(*Log))
	}
	return logs, nil
}

// AccountCall moves value from the kernel to addr and runs the program at addr, if any.
func (s *State) AccountCall(addr cap9.Address, value *uint256.Int, payload []byte) ([]byte, error) {
	checkpoint := s.Checkpoint()
	out, err := s.accountCall(addr, value, payload)
	if err != nil {
		s.RevertTo(checkpoint)
		return nil, err
	}
	return out, nil
}

func (s *State) accountCall(addr cap9.Address, value *uint256.Int, payload []byte) ([]byte, error) {
	if value != nil && !value.IsZero() {
		from, err := s.Balance(s.self)
		if err != nil {
			return nil, err
		}
		if from.Lt(value) {
			return nil, ErrInsufficientBalance
		}
		s.SetBalance(s.self, from.Sub(from, value))

		to, err := s.Balance(addr)
		if err != nil {
			return nil, err
		}
		if _, overflow := to.AddOverflow(to, value); overflow {
			return nil, errors.New("balance overflow")
		}
		s.SetBalance(addr, to)
	}
	if _, ok := s.programs[addr]; !ok {
		return nil, nil
	}
	return s.Invoke(addr, externalEnv{}, payload)
}

// Checkpoint makes a checkpoint of current state.
// It returns revision of the checkpoint.
func (s *State) Checkpoint() int {
	return s.sm.Push()
}

// RevertTo revert to checkpoint specified by revision.
func (s *State) RevertTo(revision int) {
	s.sm.PopTo(revision)
}

// Commit writes all journaled changes to the backing store and
// resets the journal.
func (s *State) Commit() error {
	var (
		batch    = s.store.NewBatch()
		storage  = storageBucket.NewPutter(batch)
		balances = balanceBucket.NewPutter(batch)
		logs     = logBucket.NewPutter(batch)
		meta     = metaBucket.NewPutter(batch)
		words    = make(map[cap9.Bytes32]cap9.Bytes32)
		counts   = make(map[string]int64)
		jerr     error
	)

	s.sm.Journal(func(k, v any) bool {
		switch key := k.(type) {
		case storageKey:
			val := v.(cap9.Bytes32)
			if val.IsZero() {
				jerr = storage.Delete(key[:])
			} else {
				jerr = storage.Put(key[:], val[:])
			}
			words[cap9.Bytes32(key)] = val
			counts["storage"]++
		case balanceKey:
			bal := v.(*uint256.Int)
			if bal.IsZero() {
				jerr = balances.Delete(key[:])
				break
			}
			var data []byte
			if data, jerr = rlp.EncodeToBytes(bal); jerr == nil {
				jerr = balances.Put(key[:], data)
			}
			counts["balance"]++
		case logKey:
			var data []byte
			if data, jerr = rlp.EncodeToBytes(v.(*Log)); jerr == nil {
				jerr = logs.Put(logSeqKey(uint64(key)), data)
			}
			counts["log"]++
		case logCountKey:
			jerr = meta.Put(logCountMetaKey, logSeqKey(v.(uint64)))
		}
		return jerr == nil
	})
	if jerr != nil {
		return errors.Wrap(jerr, "commit")
	}
	if err := batch.Write(); err != nil {
		return errors.Wrap(err, "commit")
	}

	for k, v := range words {
		s.cache.Add(k, v)
	}
	s.sm = stackedmap.New(s.cacheGetter)

	metricCommits().Add(1)
	for kind, n := range counts {
		metricCommitWrites().AddWithLabel(n, map[string]string{"kind": kind})
	}
	if changed, hit, miss := s.cache.Stats().Stats(); changed {
		logger.Debug("storage cache stats", "hit", hit, "miss", miss)
	}
	logger.Debug("committed", "storage", counts["storage"], "balances", counts["balance"], "logs", counts["log"])
	return nil
}

// Close closes the backing store if it supports closing.
func (s *State) Close() error {
	if c, ok := s.store.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// externalEnv is handed to programs run by AccountCall: they run outside the
// kernel and can neither read its storage nor issue syscalls.
type externalEnv struct{}

func (externalEnv) Read(cap9.Bytes32) (cap9.Bytes32, error) { return cap9.Bytes32{}, ErrNoKernel }
func (externalEnv) Syscall([]byte) ([]byte, error)          { return nil, ErrNoKernel }
