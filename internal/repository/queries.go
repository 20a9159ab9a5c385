package repository

// Запросы, общие для PostgreSQL и SQLite.

const statsUsersQuery = `SELECT
	COUNT(*),
	COALESCE(SUM(CASE WHEN referral_count > 0 THEN 1 ELSE 0 END), 0),
	COALESCE(SUM(balance), 0)
FROM users`

const statsWithdrawalsQuery = `SELECT
	COALESCE(SUM(CASE WHEN status = 'pending' THEN 1 ELSE 0 END), 0),
	COALESCE(SUM(CASE WHEN status = 'approved' THEN 1 ELSE 0 END), 0),
	COALESCE(SUM(CASE WHEN status = 'rejected' THEN 1 ELSE 0 END), 0),
	COALESCE(SUM(CASE WHEN status = 'cancelled' THEN 1 ELSE 0 END), 0),
	COALESCE(SUM(CASE WHEN status = 'approved' THEN amount ELSE 0 END), 0)
FROM withdrawals`

func listReferralsQuery(placeholder string) string {
	return `SELECT r.referrer_id, r.referred_id, r.reward_given, r.created_at, COALESCE(u.first_name, '')
FROM referrals r
LEFT JOIN users u ON u.id = r.referred_id
WHERE r.referrer_id = ` + placeholder + `
ORDER BY r.created_at DESC, r.referred_id DESC`
}
