//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package commit

import (
	"crypto/rand"
	"sync"
	"testing"

	"github.com/markkurossi/agmpc/abort"
	"github.com/markkurossi/agmpc/ot"
	"github.com/markkurossi/agmpc/p2p"
	"github.com/markkurossi/agmpc/tensor"
	"github.com/stretchr/testify/require"
)

func TestFeqEqual(t *testing.T) {
	err := p2p.RunLocal(3, func(nw *p2p.Network) error {
		return nw.ForEachPeer(func(peer tensor.Party) error {
			feq := NewFeq(nw, peer)
			feq.Add([]byte("shared value"))
			feq.AddLabel(ot.MakeLabel(1, 2), ot.MakeLabel(3, 4))
			return feq.Compare(rand.Reader)
		})
	})
	require.NoError(t, err)
}

func TestFeqUnequal(t *testing.T) {
	var m sync.Mutex
	var errs []error

	nws := p2p.NewPipeNetworks(2)
	var wg sync.WaitGroup
	for _, nw := range nws {
		wg.Add(1)
		go func() {
			defer wg.Done()
			feq := NewFeq(nw, nw.Peers()[0])
			feq.Add([]byte{byte(nw.Party())})
			err := feq.Compare(rand.Reader)
			m.Lock()
			errs = append(errs, err)
			m.Unlock()
		}()
	}
	wg.Wait()

	require.Len(t, errs, 2)
	for _, err := range errs {
		require.Error(t, err)
		require.True(t, abort.IsCheating(err), "unexpected error: %v", err)
	}
}

func TestSampleRandom(t *testing.T) {
	const n = 4
	results := make([]ot.Label, n)

	err := p2p.RunLocal(n, func(nw *p2p.Network) error {
		r, err := SampleRandom(nw, rand.Reader)
		if err != nil {
			return err
		}
		results[nw.Party()-1] = r
		return nil
	})
	require.NoError(t, err)
	for i := 1; i < n; i++ {
		require.Equal(t, results[0], results[i])
	}
	require.False(t, results[0].IsZero())
}

func TestHashOnce(t *testing.T) {
	require.Equal(t, HashOnce([]byte("ab"), []byte("c")),
		HashOnce([]byte("abc")))

	var ld ot.LabelData
	l := ot.MakeLabel(5, 6)
	require.Equal(t, HashOnce(l.Bytes(&ld)), HashLabels(l))
}

func TestHasher(t *testing.T) {
	h := NewHasher()
	h.AddBools([]bool{true, false})
	h.AddLabels([]ot.Label{ot.MakeLabel(1, 2)})

	var ld ot.LabelData
	l := ot.MakeLabel(1, 2)
	require.Equal(t, HashOnce([]byte{1, 0}, l.Bytes(&ld)), h.Sum())
}
