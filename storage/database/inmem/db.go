package inmemdb

import (
	"sync"

	"github.com/coachingcentre/platform/core/course"
	"github.com/coachingcentre/platform/core/session"
	"github.com/coachingcentre/platform/core/user"
)

type (
	DB struct {
		user    *userTable
		course  *courseTable
		session *sessionTable
	}

	userTable struct {
		mutex sync.RWMutex
		table map[string]*user.User
	}

	courseTable struct {
		mutex sync.RWMutex
		table map[string]*course.Course
	}

	sessionTable struct {
		mutex sync.RWMutex
		table map[string]*session.Session
	}
)

func Open() *DB {
	return &DB{
		user:    &userTable{table: make(map[string]*user.User)},
		course:  &courseTable{table: make(map[string]*course.Course)},
		session: &sessionTable{table: make(map[string]*session.Session)},
	}
}
