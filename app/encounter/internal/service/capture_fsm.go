package service

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/lk2023060901/xdooria-encounter/app/encounter/internal/model"
)

// ErrSessionClosed 会话已处于终止状态
var ErrSessionClosed = errors.New("capture session is closed")

// CaptureEvent 驱动捕获状态机的事件
type CaptureEvent interface {
	captureEvent()
}

// ThrowEvent 投掷道具，道具已在存储端扣除
type ThrowEvent struct {
	Device     model.DeviceType
	Multiplier float64
	// CatchRange 大于 0 时覆盖状态机的判定区间，用于热更新后的数值
	CatchRange int
}

// RunEvent 玩家逃走
type RunEvent struct{}

// ExpireEvent 无操作超时
type ExpireEvent struct{}

// AbortEvent 内部故障
type AbortEvent struct {
	Cause error
}

func (ThrowEvent) captureEvent()  {}
func (RunEvent) captureEvent()    {}
func (ExpireEvent) captureEvent() {}
func (AbortEvent) captureEvent()  {}

// Transition 一次状态转移
type Transition struct {
	From   model.SessionState
	To     model.SessionState
	Reason model.Reason

	// 仅投掷事件有效，FleeRoll 为 0 表示未进入逃跑判定
	CatchRoll int
	EffRate   float64
	FleeRoll  int
}

// CaptureFSM 捕获状态机，只依赖注入的随机源，不做任何 IO
type CaptureFSM struct {
	rng        Roller
	catchRange int
}

// NewCaptureFSM 创建状态机，捕获判定值在 [0, catchRange] 内均匀分布
func NewCaptureFSM(rng Roller, catchRange int) *CaptureFSM {
	return &CaptureFSM{rng: rng, catchRange: catchRange}
}

// Expired 最后一次有效动作距今是否已超过 timeout
func Expired(enc *model.WildEncounter, now time.Time, timeout time.Duration) bool {
	return now.Sub(enc.LastActivity) >= timeout
}

// Step 应用事件并修改 enc 的状态
func (f *CaptureFSM) Step(enc *model.WildEncounter, ev CaptureEvent) (Transition, error) {
	tr := Transition{From: enc.State}
	if enc.State.Terminal() {
		tr.To = enc.State
		return tr, ErrSessionClosed
	}

	switch e := ev.(type) {
	case ThrowEvent:
		enc.Attempts++
		tr.EffRate = float64(enc.CaptureRate) * e.Multiplier
		catchRange := f.catchRange
		if e.CatchRange > 0 {
			catchRange = e.CatchRange
		}
		tr.CatchRoll = f.rng.Intn(catchRange + 1)
		if float64(tr.CatchRoll) <= tr.EffRate {
			tr.To = model.StateCaught
			break
		}
		tr.FleeRoll = 1 + f.rng.Intn(100)
		if tr.FleeRoll <= enc.FleeChance {
			tr.To = model.StateFled
			tr.Reason = model.ReasonEscaped
			break
		}
		tr.To = model.StateOpen

	case RunEvent:
		tr.To = model.StateFled
		tr.Reason = model.ReasonRun

	case ExpireEvent:
		tr.To = model.StateExpired
		tr.Reason = model.ReasonTimeout

	case AbortEvent:
		tr.To = model.StateAborted

	default:
		tr.To = enc.State
		return tr, errors.Newf("unknown capture event %T", ev)
	}

	enc.State = tr.To
	return tr, nil
}
