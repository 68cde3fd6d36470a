package inmemdb

import (
	"sync"

	"github.com/ramesh-perabattula/EduPay/core/ledger"
)

// DB is an in-memory ledger store. Safe for concurrent use.
type DB struct {
	mutex    sync.RWMutex // guards the tables
	seq      int64
	order    []string // USNs in insertion order
	students map[string]ledger.Student
	records  map[string][]ledger.FeeRecord // by USN
	payments map[string][]ledger.Payment   // by USN

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex // per student
}

func Open() *DB {
	return &DB{
		students: make(map[string]ledger.Student),
		records:  make(map[string][]ledger.FeeRecord),
		payments: make(map[string][]ledger.Payment),
		locks:    make(map[string]*sync.Mutex),
	}
}

func (db *DB) studentLock(usn string) *sync.Mutex {
	db.locksMu.Lock()
	defer db.locksMu.Unlock()

	lock, ok := db.locks[usn]
	if !ok {
		lock = new(sync.Mutex)
		db.locks[usn] = lock
	}
	return lock
}
