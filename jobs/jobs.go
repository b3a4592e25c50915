package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

const jobTimeout = 2 * time.Minute

type ReservationJobs interface {
	SendReminders(ctx context.Context) (int, error)
	MarkNoShows(ctx context.Context) (int64, error)
}

type CheckoutJobs interface {
	PurgeCheckoutData(ctx context.Context) (int64, error)
}

type CourseJobs interface {
	ClearExpiredBoosts(ctx context.Context) (int64, error)
}

// Runner owns the periodic maintenance work of the marketplace.
type Runner struct {
	Reservations ReservationJobs
	Checkouts    CheckoutJobs
	Courses      CourseJobs
	Log          *logrus.Logger
}

// Schedule registers every job on c. Specs use the standard five-field format.
func (r *Runner) Schedule(c *cron.Cron) error {
	entries := []struct {
		spec string
		job  func()
	}{
		{"*/5 * * * *", r.SendReservationReminders},
		{"*/5 * * * *", r.MarkNoShows},
		{"*/10 * * * *", r.PurgeCheckoutData},
		{"0 * * * *", r.ClearExpiredBoosts},
	}
	for _, e := range entries {
		if _, err := c.AddFunc(e.spec, e.job); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) run(name string, fn func(ctx context.Context) (int64, error)) {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	n, err := fn(ctx)
	if err != nil {
		r.Log.WithFields(logrus.Fields{"job": name, "error": err}).Error("job failed")
		return
	}
	if n > 0 {
		r.Log.WithFields(logrus.Fields{"job": name, "affected": n}).Info("job finished")
	}
}
