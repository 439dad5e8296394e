//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package abort

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
)

func TestClassification(t *testing.T) {
	err := Cheatingf("check1: peer %d", 2)
	require.True(t, IsCheating(err))
	require.Contains(t, err.Error(), "peer 2")

	err = errors.Wrap(err, "preprocess")
	require.True(t, IsCheating(err))
	require.False(t, errors.Is(err, ErrMisuse))

	err = Misusef("input length %d", 3)
	require.True(t, IsMisuse(err))
	require.False(t, IsCheating(err))
}
