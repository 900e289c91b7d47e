package engine

import (
	"errors"
	"fmt"
)

// MalformedEventError - 필수 필드 누락 또는 value 변환 실패
// 호출자는 이벤트를 로그로 남기고 건너뛴다 (재시도하지 않음).
type MalformedEventError struct {
	EventID string
	Field   string
	Reason  string
	Err     error
}

func (e *MalformedEventError) Error() string {
	msg := fmt.Sprintf("malformed event (event_id=%q): %s %s", e.EventID, e.Field, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MalformedEventError) Unwrap() error { return e.Err }

// IsMalformed - err 체인에 MalformedEventError가 있는지 확인
func IsMalformed(err error) bool {
	var me *MalformedEventError
	return errors.As(err, &me)
}

// ErrPoolClosed - 종료된 pool에 이벤트를 제출한 경우
var ErrPoolClosed = errors.New("engine pool is closed")
