package redis

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/redis/rueidis/mock"
	"go.uber.org/mock/gomock"

	"github.com/semdex-io/semdex/internal/db"
)

func mockedStore(t *testing.T) (*Store, *mock.Client) {
	t.Helper()
	c := mock.NewClient(gomock.NewController(t))
	return NewStoreForTest(c), c
}

func TestNewStore_EmptyAddrs(t *testing.T) {
	if _, err := NewStore(Config{}); err == nil {
		t.Fatal("expected error for empty addrs")
	}
}

func TestPing(t *testing.T) {
	t.Run("pong", func(t *testing.T) {
		s, c := mockedStore(t)
		c.EXPECT().
			Do(gomock.Any(), mock.Match("PING")).
			Return(mock.Result(mock.RedisString("PONG")))

		if err := s.Ping(context.Background()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("server unreachable", func(t *testing.T) {
		s, c := mockedStore(t)
		c.EXPECT().
			Do(gomock.Any(), mock.Match("PING")).
			Return(mock.ErrorResult(context.DeadlineExceeded))

		if err := s.Ping(context.Background()); err == nil {
			t.Fatal("expected error")
		}
	})
}

func TestGet(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		s, c := mockedStore(t)
		c.EXPECT().
			Do(gomock.Any(), mock.Match("GET", "k")).
			Return(mock.Result(mock.RedisBlobString("v")))

		data, err := s.Get(context.Background(), "k")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if string(data) != "v" {
			t.Errorf("Get = %q, want %q", data, "v")
		}
	})

	t.Run("missing key maps to sentinel", func(t *testing.T) {
		s, c := mockedStore(t)
		c.EXPECT().
			Do(gomock.Any(), mock.Match("GET", "k")).
			Return(mock.Result(mock.RedisNil()))

		if _, err := s.Get(context.Background(), "k"); !errors.Is(err, db.ErrKeyNotFound) {
			t.Errorf("expected ErrKeyNotFound, got %v", err)
		}
	})

	t.Run("backend error keeps op", func(t *testing.T) {
		s, c := mockedStore(t)
		c.EXPECT().
			Do(gomock.Any(), mock.Match("GET", "k")).
			Return(mock.ErrorResult(context.DeadlineExceeded))

		_, err := s.Get(context.Background(), "k")
		var dbErr *db.Error
		if !errors.As(err, &dbErr) {
			t.Fatalf("expected *db.Error, got %v", err)
		}
		if dbErr.Op != db.OpGet {
			t.Errorf("Op = %q, want %q", dbErr.Op, db.OpGet)
		}
	})
}

func TestWriteOps_WrapBackendErrors(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name   string
		cmd    string
		wantOp string
		call   func(s *Store) error
	}{
		{"set", "SET", db.OpSet, func(s *Store) error {
			return s.Set(ctx, "k", []byte("v"))
		}},
		{"incrby", "INCRBY", db.OpIncrBy, func(s *Store) error {
			return s.IncrBy(ctx, "k", 1)
		}},
		{"expire", "EXPIRE", db.OpExpire, func(s *Store) error {
			return s.Expire(ctx, "k", time.Minute, false)
		}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s, c := mockedStore(t)
			c.EXPECT().
				Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
					return cmd[0] == tc.cmd
				})).
				Return(mock.ErrorResult(context.DeadlineExceeded))

			err := tc.call(s)
			var dbErr *db.Error
			if !errors.As(err, &dbErr) {
				t.Fatalf("expected *db.Error, got %v", err)
			}
			if dbErr.Op != tc.wantOp {
				t.Errorf("Op = %q, want %q", dbErr.Op, tc.wantOp)
			}
		})
	}
}

func TestSet(t *testing.T) {
	s, c := mockedStore(t)
	c.EXPECT().
		Do(gomock.Any(), mock.Match("SET", "k", "v")).
		Return(mock.Result(mock.RedisString("OK")))

	if err := s.Set(context.Background(), "k", []byte("v")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSetWithTTL_SendsExpiry(t *testing.T) {
	s, c := mockedStore(t)
	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "SET" && cmd[1] == "k" && slices.Contains(cmd, "EX")
		})).
		Return(mock.Result(mock.RedisString("OK")))

	if err := s.SetWithTTL(context.Background(), "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestIncrBy_SendsAmount(t *testing.T) {
	s, c := mockedStore(t)
	c.EXPECT().
		Do(gomock.Any(), mock.Match("INCRBY", "counter", "5")).
		Return(mock.Result(mock.RedisInt64(5)))

	if err := s.IncrBy(context.Background(), "counter", 5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestExpire_NXFlag(t *testing.T) {
	for _, nx := range []bool{false, true} {
		name := "without nx"
		if nx {
			name = "with nx"
		}
		t.Run(name, func(t *testing.T) {
			s, c := mockedStore(t)
			c.EXPECT().
				Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
					if cmd[0] != "EXPIRE" || cmd[1] != "k" {
						return false
					}
					return slices.Contains(cmd, "NX") == nx
				})).
				Return(mock.Result(mock.RedisInt64(1)))

			if err := s.Expire(context.Background(), "k", 5*time.Minute, nx); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}
