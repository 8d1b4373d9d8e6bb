package workers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/LoansBot/loansbot/internal/responses"
	"github.com/LoansBot/loansbot/pkg/database"
)

// missingAlert is one (user, endpoint) pair owed an alert.
type missingAlert struct {
	UserID     int64  `db:"user_id"`
	Username   string `db:"username"`
	EndpointID int64  `db:"endpoint_id"`
	CountInUse int64  `db:"count_in_interval"`
}

// endpointInfo is what the alert text needs about an endpoint.
type endpointInfo struct {
	ID           int64     `db:"id"`
	Slug         string    `db:"slug"`
	Path         string    `db:"path"`
	Verb         string    `db:"verb"`
	DeprecatedOn time.Time `db:"deprecated_on"`
	SunsetsOn    time.Time `db:"sunsets_on"`
}

// DeprecatedAlertsWorker messages users of deprecated endpoints: an initial
// alert on first detection, a reminder each calendar month they keep using
// one, and urgent alerts as the sunset approaches. 1PM UTC is 6AM PST / 9AM
// EST, a good time for messages people should read and process.
type DeprecatedAlertsWorker struct{}

// Name implements Worker
func (w *DeprecatedAlertsWorker) Name() string {
	return "deprecated_alerts"
}

// Run implements Worker
func (w *DeprecatedAlertsWorker) Run(ctx context.Context, deps *Deps) error {
	log := deps.Logger.Named(w.Name())
	log.Debug("successfully booted up")

	return RunDailyAt(ctx, 13, 0, func(ctx context.Context) error {
		return w.sendMessages(ctx, deps)
	})
}

// The three passes, in order. Each yields (user, endpoint) pairs owed an
// alert of that type.
var alertPasses = []struct {
	alertType string
	query     string
}{
	{
		// Ever used a deprecated endpoint, never alerted about it.
		alertType: "initial",
		query: `
			SELECT users.id AS user_id, users.username,
			       endpoint_usages.endpoint_id,
			       COUNT(*) AS count_in_interval
			FROM endpoint_usages
			JOIN users ON users.id = endpoint_usages.user_id
			JOIN endpoints ON endpoints.id = endpoint_usages.endpoint_id
			WHERE endpoints.deprecated_on IS NOT NULL
			  AND NOT EXISTS (
			    SELECT 1 FROM endpoint_alerts
			    WHERE endpoint_alerts.user_id = users.id
			      AND endpoint_alerts.endpoint_id = endpoint_usages.endpoint_id
			  )
			GROUP BY 1, 2, 3
			ORDER BY users.id`,
	},
	{
		// Used it during the previous calendar month with no alert since
		// that month began.
		alertType: "reminder",
		query: `
			SELECT users.id AS user_id, users.username,
			       endpoint_usages.endpoint_id,
			       COUNT(*) AS count_in_interval
			FROM endpoint_usages
			JOIN users ON users.id = endpoint_usages.user_id
			JOIN endpoints ON endpoints.id = endpoint_usages.endpoint_id
			WHERE endpoints.deprecated_on IS NOT NULL
			  AND endpoint_usages.created_at >= DATE_TRUNC('month', NOW()) - INTERVAL '1 month'
			  AND endpoint_usages.created_at < DATE_TRUNC('month', NOW())
			  AND NOT EXISTS (
			    SELECT 1 FROM endpoint_alerts
			    WHERE endpoint_alerts.user_id = users.id
			      AND endpoint_alerts.endpoint_id = endpoint_usages.endpoint_id
			      AND endpoint_alerts.sent_at >= DATE_TRUNC('month', NOW()) - INTERVAL '1 month'
			  )
			GROUP BY 1, 2, 3
			ORDER BY users.id`,
	},
	{
		// Sunset is close; repeat every third day.
		alertType: "urgent",
		query: `
			SELECT users.id AS user_id, users.username,
			       endpoint_usages.endpoint_id,
			       COUNT(*) AS count_in_interval
			FROM endpoint_usages
			JOIN users ON users.id = endpoint_usages.user_id
			JOIN endpoints ON endpoints.id = endpoint_usages.endpoint_id
			WHERE endpoints.deprecated_on IS NOT NULL
			  AND endpoints.sunsets_on IS NOT NULL
			  AND endpoints.sunsets_on < NOW() + INTERVAL '27 days'
			  AND NOT EXISTS (
			    SELECT 1 FROM endpoint_alerts
			    WHERE endpoint_alerts.user_id = users.id
			      AND endpoint_alerts.endpoint_id = endpoint_usages.endpoint_id
			      AND endpoint_alerts.sent_at > NOW() - INTERVAL '3 days'
			  )
			GROUP BY 1, 2, 3
			ORDER BY users.id`,
	},
}

func (w *DeprecatedAlertsWorker) sendMessages(ctx context.Context, deps *Deps) error {
	log := deps.Logger.Named(w.Name())

	for _, pass := range alertPasses {
		var alerts []missingAlert
		if err := deps.DB.SelectContext(ctx, &alerts, pass.query); err != nil {
			return fmt.Errorf("alert pass %s: %w", pass.alertType, err)
		}
		if len(alerts) == 0 {
			continue
		}

		endpointIDs := map[int64]bool{}
		for _, alert := range alerts {
			endpointIDs[alert.EndpointID] = true
		}
		endpointsByID, err := w.endpointInfoByID(ctx, deps, endpointIDs)
		if err != nil {
			return err
		}

		byUser := map[int64][]missingAlert{}
		for _, alert := range alerts {
			byUser[alert.UserID] = append(byUser[alert.UserID], alert)
		}

		for _, userAlerts := range byUser {
			if err := w.sendGroupedAlert(ctx, deps, pass.alertType, userAlerts, endpointsByID); err != nil {
				return err
			}
		}

		log.Info("sent deprecated endpoint alerts",
			zap.String("type", pass.alertType),
			zap.Int("users", len(byUser)),
		)
	}

	return nil
}

func (w *DeprecatedAlertsWorker) endpointInfoByID(ctx context.Context, deps *Deps, ids map[int64]bool) (map[int64]endpointInfo, error) {
	idList := make([]int64, 0, len(ids))
	for id := range ids {
		idList = append(idList, id)
	}
	query, args, err := sqlxIn(`
		SELECT id, slug, path, verb, deprecated_on, sunsets_on
		FROM endpoints WHERE id IN (?)`, idList)
	if err != nil {
		return nil, err
	}
	var rows []endpointInfo
	if err := deps.DB.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("load endpoint info: %w", err)
	}
	byID := make(map[int64]endpointInfo, len(rows))
	for _, row := range rows {
		byID[row.ID] = row
	}
	return byID, nil
}

// sendGroupedAlert sends one message covering every endpoint the user is
// owed an alert for, then records the alerts.
func (w *DeprecatedAlertsWorker) sendGroupedAlert(ctx context.Context, deps *Deps, alertType string, alerts []missingAlert, endpointsByID map[int64]endpointInfo) error {
	username := alerts[0].Username

	var lines []string
	for _, alert := range alerts {
		endpoint := endpointsByID[alert.EndpointID]
		lines = append(lines, fmt.Sprintf(
			"- %s %s (%s): deprecated %s, sunsets %s (%d uses)",
			endpoint.Verb, endpoint.Path, endpoint.Slug,
			endpoint.DeprecatedOn.Format("Jan 02, 2006"),
			endpoint.SunsetsOn.Format("Jan 02, 2006"),
			alert.CountInUse,
		))
	}

	subject, body, err := responses.GetLetter(ctx, deps.DB, "deprecated_alerts_"+alertType, map[string]interface{}{
		"username":  username,
		"endpoints": strings.Join(lines, "\n"),
	})
	if err != nil {
		return err
	}
	if err := deps.Proxy.Compose(ctx, w.Name(), deps.Version, username, subject, body); err != nil {
		return err
	}

	return database.Transaction(ctx, deps.DB, func(tx *sqlx.Tx) error {
		for _, alert := range alerts {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO endpoint_alerts (endpoint_id, user_id, alert_type)
				VALUES ($1, $2, $3)`,
				alert.EndpointID, alert.UserID, alertType,
			)
			if err != nil {
				return fmt.Errorf("record endpoint alert: %w", err)
			}
		}
		return nil
	})
}
