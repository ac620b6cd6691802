package app

import (
	"github.com/google/wire"
)

// AppComponents Wire 收集的服务与资源
type AppComponents struct {
	Servers []Server
	Closers []Closer
}

// ProviderSet 导出给 Wire 使用
var ProviderSet = wire.NewSet(
	NewBaseApp,
)

// InitApp 把 Wire 注入的组件挂到 BaseApp 上
func InitApp(app *BaseApp, comps AppComponents) Application {
	app.AppendServer(comps.Servers...)
	app.AppendCloser(comps.Closers...)
	return app
}

// CloserFunc 把普通函数适配为 Closer
type CloserFunc func() error

func (f CloserFunc) Close() error { return f() }

// MapCloser 把 Close() 无返回值的资源（如 pgxpool）适配为 Closer
func MapCloser(close func()) Closer {
	return CloserFunc(func() error {
		close()
		return nil
	})
}
