package client

import "sync/atomic"

// Generation 为并发请求签发递增令牌，只有最新令牌对应的响应会被采用。
type Generation struct {
	n atomic.Uint64
}

// Next 签发新令牌，之前签发的令牌全部失效。
func (g *Generation) Next() uint64 {
	return g.n.Add(1)
}

func (g *Generation) IsCurrent(token uint64) bool {
	return g.n.Load() == token
}
