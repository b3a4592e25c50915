package jobs

// MarkNoShows flags reservations that were never checked in once the class ended.
func (r *Runner) MarkNoShows() {
	r.run("reservation_no_shows", r.Reservations.MarkNoShows)
}
