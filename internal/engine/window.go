package engine

// Window - 그룹 키 하나의 고정 크기 FIFO 링 버퍼
// 도착 순서를 그대로 유지하며 (ts_event로 재정렬하지 않음), 가득 찬 상태에서
// Push하면 가장 오래된 값이 밀려난다.
type Window struct {
	buf   []float64
	start int
	size  int
}

func NewWindow(capacity int) *Window {
	return &Window{buf: make([]float64, capacity)}
}

// Push - 값을 추가하고 용량을 넘으면 가장 오래된 값을 제거
func (w *Window) Push(v float64) {
	capacity := len(w.buf)
	if w.size < capacity {
		w.buf[(w.start+w.size)%capacity] = v
		w.size++
		return
	}
	w.buf[w.start] = v
	w.start = (w.start + 1) % capacity
}

func (w *Window) Len() int { return w.size }

func (w *Window) Cap() int { return len(w.buf) }

func (w *Window) Full() bool { return w.size == len(w.buf) }

// Mean - 버퍼 전체의 산술 평균
// 누적합을 유지하지 않고 매번 다시 계산한다 (N이 작으므로 부동소수 오차 누적 방지가 우선).
func (w *Window) Mean() float64 {
	if w.size == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < w.size; i++ {
		sum += w.buf[(w.start+i)%len(w.buf)]
	}
	return sum / float64(w.size)
}

// Values - 오래된 값부터 순서대로 복사본 반환
func (w *Window) Values() []float64 {
	out := make([]float64, w.size)
	for i := 0; i < w.size; i++ {
		out[i] = w.buf[(w.start+i)%len(w.buf)]
	}
	return out
}
