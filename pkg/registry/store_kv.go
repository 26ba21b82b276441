package registry

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"

	"zerospeech.io/zrc/pkg/errors"
	"zerospeech.io/zrc/pkg/types"
)

const (
	receiptKeyPrefix     = "receipt/"
	leaderboardKeyPrefix = "leaderboard/"
)

// KVStore persists submission receipts and leaderboards in a local leveldb.
type KVStore struct {
	db *leveldb.DB
}

func NewKVStore(options *DBOptions) (*KVStore, error) {
	db, err := leveldb.OpenFile(options.Path, nil)
	if err != nil {
		return nil, fmt.Errorf("open receipt db %s: %w", options.Path, err)
	}
	return &KVStore{db: db}, nil
}

func (s *KVStore) Close() error {
	return s.db.Close()
}

func (s *KVStore) PutReceipt(receipt *types.SubmissionReceipt) error {
	receipt.Updated = time.Now().UTC()
	content, err := json.Marshal(receipt)
	if err != nil {
		return errors.NewInternalError(err)
	}
	if err := s.db.Put([]byte(receiptKeyPrefix+receipt.ID), content, nil); err != nil {
		return errors.NewInternalError(err)
	}
	return nil
}

func (s *KVStore) GetReceipt(id string) (*types.SubmissionReceipt, error) {
	content, err := s.db.Get([]byte(receiptKeyPrefix+id), nil)
	if err != nil {
		if err == leveldb.ErrNotFound {
			return nil, errors.NewSubmissionUnknownError(id)
		}
		return nil, errors.NewInternalError(err)
	}
	receipt := &types.SubmissionReceipt{}
	if err := json.Unmarshal(content, receipt); err != nil {
		return nil, errors.NewInternalError(err)
	}
	return receipt, nil
}

// ListReceipts returns every stored receipt, newest first.
func (s *KVStore) ListReceipts() ([]types.SubmissionReceipt, error) {
	iter := s.db.NewIterator(util.BytesPrefix([]byte(receiptKeyPrefix)), nil)
	defer iter.Release()

	var receipts []types.SubmissionReceipt
	for iter.Next() {
		receipt := types.SubmissionReceipt{}
		if err := json.Unmarshal(iter.Value(), &receipt); err != nil {
			continue
		}
		receipts = append(receipts, receipt)
	}
	if err := iter.Error(); err != nil {
		return nil, errors.NewInternalError(err)
	}
	for i, j := 0, len(receipts)-1; i < j; i, j = i+1, j-1 {
		receipts[i], receipts[j] = receipts[j], receipts[i]
	}
	return receipts, nil
}

func (s *KVStore) PutLeaderboard(board *types.Leaderboard) error {
	content, err := json.Marshal(board)
	if err != nil {
		return errors.NewInternalError(err)
	}
	if err := s.db.Put([]byte(leaderboardKeyPrefix+board.Benchmark), content, nil); err != nil {
		return errors.NewInternalError(err)
	}
	return nil
}

func (s *KVStore) GetLeaderboard(benchmark string) (*types.Leaderboard, error) {
	content, err := s.db.Get([]byte(leaderboardKeyPrefix+benchmark), nil)
	if err != nil {
		if err == leveldb.ErrNotFound {
			return nil, errors.NewBenchmarkUnknownError(benchmark)
		}
		return nil, errors.NewInternalError(err)
	}
	board := &types.Leaderboard{}
	if err := json.Unmarshal(content, board); err != nil {
		return nil, errors.NewInternalError(err)
	}
	return board, nil
}
