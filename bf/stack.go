package bf

// loopStack holds the program index of every '[' whose loop is still running.
type loopStack struct {
	marks []int
}

func (s *loopStack) push(ip int) {
	s.marks = append(s.marks, ip)
}

func (s *loopStack) top() (int, bool) {
	if len(s.marks) == 0 {
		return 0, false
	}
	return s.marks[len(s.marks)-1], true
}

func (s *loopStack) pop() (int, bool) {
	ip, ok := s.top()
	if ok {
		s.marks = s.marks[:len(s.marks)-1]
	}
	return ip, ok
}

func (s *loopStack) len() int {
	return len(s.marks)
}

func (s *loopStack) reset() {
	s.marks = s.marks[:0]
}
