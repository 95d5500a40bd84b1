/*
	Project: Coaching Centre platform - class scheduling & enrollment
	Target: coaching institutes (one institute per deployment)
*/
package platform

/*
TODO: admin: upload CSV to bulk enroll learners into a session via API

TODO: Waitlist
	- learner joins the waitlist of a full session
	- first in line is enrolled (and emailed) when a seat is freed by unenroll or a capacity increase

TODO: Recurrences
	- edit/cancel "this and following" sessions of a series (sessions only share the recurrence template today)

TODO: Events
	- hub is per process: fan events out through the DB (postgres LISTEN/NOTIFY) when running more than one API instance
*/
