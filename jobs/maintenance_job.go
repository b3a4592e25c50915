package jobs

// PurgeCheckoutData drops checkout payloads past their 30 minute window.
func (r *Runner) PurgeCheckoutData() {
	r.run("purge_checkout_data", r.Checkouts.PurgeCheckoutData)
}

func (r *Runner) ClearExpiredBoosts() {
	r.run("clear_expired_boosts", r.Courses.ClearExpiredBoosts)
}
