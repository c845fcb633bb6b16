package messagestore

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSubscribeSeesFullPrefixThenFuture(t *testing.T) {
	s := New()
	s.PushStdout([]byte("a"))
	s.PushStdout([]byte("b"))

	sub := s.Subscribe(0)

	s.PushStdout([]byte("c"))
	s.PushFinished(0)
	s.Close()

	var got []string
	for e := range sub {
		if e.Kind == KindStdout {
			got = append(got, string(e.Bytes))
		}
	}
	require.Equal(t, []string{"a", "b", "c"}, got)
}

func TestTwoSubscribersObserveSameOrder(t *testing.T) {
	s := New()
	for i := 0; i < 5; i++ {
		s.PushStdout([]byte{byte('0' + i)})
	}

	sub1 := s.Subscribe(0)
	sub2 := s.Subscribe(0)
	s.PushFinished(0)
	s.Close()

	var seq1, seq2 []Kind
	for e := range sub1 {
		seq1 = append(seq1, e.Kind)
	}
	for e := range sub2 {
		seq2 = append(seq2, e.Kind)
	}
	require.Equal(t, seq1, seq2)
	require.Equal(t, KindFinished, seq1[len(seq1)-1])
}

func TestPushAfterCloseIsNoOp(t *testing.T) {
	s := New()
	s.PushStdout([]byte("x"))
	s.Close()

	idx := s.PushStdout([]byte("y"))
	require.Equal(t, -1, idx)
	require.Equal(t, 1, s.Len())
}

func TestFinishedIsLargestIndex(t *testing.T) {
	s := New()
	s.PushStdout([]byte("a"))
	s.PushStdout([]byte("b"))
	finIdx := s.PushFinished(0)
	s.Close()

	hist := s.History()
	require.Equal(t, len(hist)-1, finIdx)
}
