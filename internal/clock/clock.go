// Package clock は現在時刻の供給源を抽象化する。
// トークンの発行・検証やマジックリンクの有効期限判定はすべてClock経由で時刻を得る。
package clock

import "time"

// Clock は現在時刻を返すインターフェース。
type Clock interface {
	Now() time.Time
}

// System はtime.Nowを返す実装。
type System struct{}

// Now は現在時刻を返す。
func (System) Now() time.Time {
	return time.Now()
}

// Func は関数をClockとして扱うためのアダプタ。
// テストで固定時刻や進める時刻を注入するために使用する。
type Func func() time.Time

// Now はfを呼び出す。
func (f Func) Now() time.Time {
	return f()
}

// Fixed は常にtを返すClockを生成する。
func Fixed(t time.Time) Clock {
	return Func(func() time.Time { return t })
}

var (
	_ Clock = System{}
	_ Clock = Func(nil)
)
