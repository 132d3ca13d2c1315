package service

import "context"

type testTxRepos struct {
	chunks ChunkTxStore
}

func (t *testTxRepos) Chunks() ChunkTxStore {
	return t.chunks
}

type testTxRunner struct {
	repos  TxRepositories
	called bool
}

func (t *testTxRunner) WithTx(ctx context.Context, fn func(repos TxRepositories) error) error {
	t.called = true
	return fn(t.repos)
}
