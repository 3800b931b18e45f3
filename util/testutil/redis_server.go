package testutil

import (
	"github.com/alicebob/miniredis/v2"
)

type RedisServer struct {
	server *miniredis.Miniredis
}

func NewRedisServer() *RedisServer {
	server, err := miniredis.Run()
	if err != nil {
		panic(err)
	}
	return &RedisServer{
		server: server,
	}
}

func (s *RedisServer) Addr() string {
	return s.server.Addr()
}

// FastForward moves the server's clock ahead so keys with a TTL
// expire.
func (s *RedisServer) FastForward(seconds int) {
	s.server.FastForward(secondsToDuration(seconds))
}

func (s *RedisServer) Close() {
	s.server.Close()
}
