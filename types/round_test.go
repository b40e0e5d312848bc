package types

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRoundCoordinate(t *testing.T) {
	testCases := []struct {
		block, reject int64
		expectErr     bool
	}{
		{0, 0, false},
		{5, 3, false},
		{-1, 0, true},
		{0, -1, true},
		{-7, -7, true},
	}

	for i, tc := range testCases {
		r, err := NewRoundCoordinate(tc.block, tc.reject)
		if tc.expectErr {
			assert.Error(t, err, "#%d", i)
			assert.True(t, errors.Is(err, ErrInvalidRound), "#%d", i)
			continue
		}
		require.NoError(t, err, "#%d", i)
		assert.EqualValues(t, tc.block, r.BlockRound)
		assert.EqualValues(t, tc.reject, r.RejectRound)
	}
}

func TestRoundCoordinateCompare(t *testing.T) {
	testCases := []struct {
		a, b     RoundCoordinate
		expected int
	}{
		{RoundCoordinate{1, 0}, RoundCoordinate{1, 0}, 0},
		{RoundCoordinate{1, 0}, RoundCoordinate{1, 1}, -1},
		{RoundCoordinate{1, 5}, RoundCoordinate{2, 0}, -1},
		{RoundCoordinate{3, 0}, RoundCoordinate{2, 9}, 1},
		{RoundCoordinate{2, 2}, RoundCoordinate{2, 1}, 1},
	}

	for i, tc := range testCases {
		assert.Equal(t, tc.expected, tc.a.Compare(tc.b), "#%d", i)
		assert.Equal(t, -tc.expected, tc.b.Compare(tc.a), "#%d", i)
		assert.Equal(t, tc.expected < 0, tc.a.Less(tc.b), "#%d", i)
		assert.Equal(t, tc.expected == 0, tc.a.Equal(tc.b), "#%d", i)
	}
}

func TestRoundCoordinateNext(t *testing.T) {
	r := RoundCoordinate{BlockRound: 4, RejectRound: 2}

	assert.Equal(t, RoundCoordinate{5, 0}, r.NextBlock())
	assert.Equal(t, RoundCoordinate{4, 3}, r.NextReject())
	assert.True(t, r.Less(r.NextReject()))
	assert.True(t, r.NextReject().Less(r.NextBlock()))
}

// 字节编码的顺序要和Compare一致，存储按key有序遍历依赖这一点
func TestRoundCoordinateBytesOrder(t *testing.T) {
	rounds := []RoundCoordinate{{0, 0}, {0, 1}, {0, 256}, {1, 0}, {256, 3}}
	for i := 1; i < len(rounds); i++ {
		prev, cur := rounds[i-1].Bytes(), rounds[i].Bytes()
		assert.True(t, string(prev) < string(cur), "%v should sort before %v", rounds[i-1], rounds[i])
	}

	back, err := RoundFromBytes(rounds[4].Bytes())
	require.NoError(t, err)
	assert.Equal(t, rounds[4], back)

	_, err = RoundFromBytes([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestRoundCoordinateString(t *testing.T) {
	assert.Equal(t, "(3, 1)", RoundCoordinate{3, 1}.String())
}
