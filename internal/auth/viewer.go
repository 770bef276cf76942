// Package auth 解析访问令牌并以 Viewer 的形式把当前浏览者显式传给各个服务。
package auth

import "context"

// Viewer 表示一次请求的浏览者：匿名访客或已登录用户。
type Viewer struct {
	UserID string
	Email  string
}

// Anonymous 返回匿名浏览者。
func Anonymous() Viewer {
	return Viewer{}
}

// Authenticated 返回已登录浏览者。
func Authenticated(userID, email string) Viewer {
	return Viewer{UserID: userID, Email: email}
}

// IsAnonymous 没有用户 ID 即为匿名。
func (v Viewer) IsAnonymous() bool {
	return v.UserID == ""
}

type ctxKey struct{}

// WithViewer 把浏览者放入 context。
func WithViewer(ctx context.Context, v Viewer) context.Context {
	return context.WithValue(ctx, ctxKey{}, v)
}

// ViewerFrom 读取 context 中的浏览者，缺省为匿名。
func ViewerFrom(ctx context.Context) Viewer {
	if v, ok := ctx.Value(ctxKey{}).(Viewer); ok {
		return v
	}
	return Anonymous()
}
