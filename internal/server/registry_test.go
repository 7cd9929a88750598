package server_test

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mkettner/relaychat/internal/server"
)

func newTestRegistry() *server.Registry {
	return server.NewRegistry(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestRegistryJoinCreatesRoomLazily(t *testing.T) {
	req := require.New(t)
	reg := newTestRegistry()

	req.Zero(reg.RoomCount())

	snap, err := reg.Join("conn-1", server.JoinRequest{UserName: "Alice", RoomID: "lobby"})
	req.NoError(err)
	req.Equal("lobby", snap.RoomID)
	req.Equal([]string{"Alice"}, snap.Members)
	req.False(snap.CreatedAt.IsZero())

	req.Equal(1, reg.RoomCount())
	req.Equal(1, reg.TotalUserCount())
	req.Equal([]string{"Alice"}, reg.Members("lobby"))
}

func TestRegistryJoinRejectsInvalidRequestWithoutMutation(t *testing.T) {
	req := require.New(t)
	reg := newTestRegistry()

	_, err := reg.Join("conn-1", server.JoinRequest{UserName: "", RoomID: "lobby"})
	var verr *server.ValidationError
	req.ErrorAs(err, &verr)

	req.Zero(reg.RoomCount())
	req.Zero(reg.TotalUserCount())
	req.Empty(reg.Members("lobby"))
}

func TestRegistryMemberJoinsExactlyOnce(t *testing.T) {
	req := require.New(t)
	reg := newTestRegistry()

	_, err := reg.Join("conn-1", server.JoinRequest{UserName: "Alice", RoomID: "lobby"})
	req.NoError(err)
	snap, err := reg.Join("conn-2", server.JoinRequest{UserName: "Bob", RoomID: "lobby"})
	req.NoError(err)

	req.ElementsMatch([]string{"Alice", "Bob"}, snap.Members)
	req.ElementsMatch([]string{"Alice", "Bob"}, reg.Members("lobby"))
	req.Equal(2, reg.TotalUserCount())
}

func TestRegistryLeaveDeletesEmptyRoom(t *testing.T) {
	req := require.New(t)
	reg := newTestRegistry()

	const n = 8
	for i := 0; i < n; i++ {
		_, err := reg.Join(fmt.Sprintf("conn-%d", i), server.JoinRequest{
			UserName: fmt.Sprintf("user-%d", i),
			RoomID:   "lobby",
		})
		req.NoError(err)
	}
	req.Equal(1, reg.RoomCount())
	req.Equal(n, reg.TotalUserCount())

	for i := 0; i < n; i++ {
		dep, ok := reg.Leave(fmt.Sprintf("conn-%d", i))
		req.True(ok)
		req.Equal("lobby", dep.RoomID)
		req.Equal(n-1-i, dep.Remaining)
	}

	req.Zero(reg.RoomCount())
	req.Zero(reg.TotalUserCount())
	req.Empty(reg.Members("lobby"))
}

func TestRegistryLeaveIsNoOpWhenNotJoined(t *testing.T) {
	req := require.New(t)
	reg := newTestRegistry()

	_, ok := reg.Leave("conn-1")
	req.False(ok)

	_, err := reg.Join("conn-1", server.JoinRequest{UserName: "Alice", RoomID: "lobby"})
	req.NoError(err)
	_, ok = reg.Leave("conn-1")
	req.True(ok)

	// Second leave finds nothing to remove.
	_, ok = reg.Leave("conn-1")
	req.False(ok)
}

func TestRegistryRoomIdentifierIsReusedWithFreshTimestamp(t *testing.T) {
	req := require.New(t)
	reg := newTestRegistry()

	first, err := reg.Join("conn-1", server.JoinRequest{UserName: "Alice", RoomID: "lobby"})
	req.NoError(err)
	_, ok := reg.Leave("conn-1")
	req.True(ok)

	second, err := reg.Join("conn-2", server.JoinRequest{UserName: "Bob", RoomID: "lobby"})
	req.NoError(err)
	req.Equal([]string{"Bob"}, second.Members)
	req.False(second.CreatedAt.Before(first.CreatedAt))
}

func TestRegistryMembersOfUnknownRoomIsEmpty(t *testing.T) {
	require.Empty(t, newTestRegistry().Members("nowhere"))
}

func TestRegistryConcurrentJoinLeave(t *testing.T) {
	req := require.New(t)
	reg := newTestRegistry()

	const workers = 32
	var wg sync.WaitGroup
	wg.Add(workers)

	for i := 0; i < workers; i++ {
		go func(i int) {
			defer wg.Done()
			connID := fmt.Sprintf("conn-%d", i)
			roomID := fmt.Sprintf("room-%d", i%4)
			for j := 0; j < 50; j++ {
				_, err := reg.Join(connID, server.JoinRequest{
					UserName: fmt.Sprintf("user-%d", i),
					RoomID:   roomID,
				})
				if err != nil {
					t.Error(err)
					return
				}
				// Snapshot reads interleave with mutation.
				if reg.TotalUserCount() < 0 {
					t.Error("negative user count")
					return
				}
				reg.Members(roomID)
				if _, ok := reg.Leave(connID); !ok {
					t.Error("leave failed for joined connection")
					return
				}
			}
		}(i)
	}
	wg.Wait()

	req.Zero(reg.RoomCount())
	req.Zero(reg.TotalUserCount())
}
