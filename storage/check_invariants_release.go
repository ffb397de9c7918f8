// +build !debug

package storage

func (l *LRU) checkInvariants() {}
