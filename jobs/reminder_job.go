package jobs

import "context"

// SendReservationReminders emails helmet holders whose class starts within the hour.
func (r *Runner) SendReservationReminders() {
	r.run("reservation_reminders", func(ctx context.Context) (int64, error) {
		sent, err := r.Reservations.SendReminders(ctx)
		return int64(sent), err
	})
}
