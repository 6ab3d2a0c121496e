package postgres

import (
	"fmt"
	"strings"

	"github.com/lalith-99/excursia/internal/models"
	"github.com/lalith-99/excursia/internal/repository"
)

const eventCardColumns = `
		e.id, e.title, e.description, e.location, e.date, e.image_url,
		e.max_attendees, e.audience,
		u.id, u.name, u.profile_picture,
		(SELECT COUNT(*) FROM event_attendees a WHERE a.event_id = e.id),
		(SELECT COUNT(*) FROM event_interests i WHERE i.event_id = e.id),
		(SELECT COUNT(*) FROM event_comments c WHERE c.event_id = e.id)`

// friendIDs selects the accepted friends of the user bound to p, from
// either side of the friendships row.
func friendIDs(p string) string {
	return `SELECT user_id2 FROM friendships WHERE user_id1 = ` + p + ` AND status = 'accepted'
			UNION
			SELECT user_id1 FROM friendships WHERE user_id2 = ` + p + ` AND status = 'accepted'`
}

// BuildEventQuery renders q into a single SELECT over events joined with
// their organizer. Placeholders are numbered in the order their values
// appear in args.
func BuildEventQuery(q repository.EventQuery) (string, []any, error) {
	if q.NeedsUser() && q.UserID == 0 {
		return "", nil, repository.ErrAuthRequired
	}

	var (
		args  []any
		conds []string
	)
	add := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	switch q.Audience {
	case "":
	case models.AudiencePublic:
		p := add(q.UserID)
		conds = append(conds, `(e.audience = 'public' OR (e.audience = 'friends' AND e.user_id IN (`+friendIDs(p)+`)))`)
	case models.AudienceFriends:
		p := add(q.UserID)
		conds = append(conds, `e.user_id IN (`+friendIDs(p)+`)`)
	default:
		return "", nil, fmt.Errorf("unknown audience %q", q.Audience)
	}

	if q.Interested != nil {
		op := "IN"
		if !*q.Interested {
			op = "NOT IN"
		}
		p := add(q.UserID)
		conds = append(conds, `e.id `+op+` (SELECT event_id FROM event_interests WHERE user_id = `+p+`)`)
	}

	if q.Applied != nil {
		op := "IN"
		if !*q.Applied {
			op = "NOT IN"
		}
		p := add(q.UserID)
		conds = append(conds, `e.id `+op+` (SELECT event_id FROM event_applications WHERE user_id = `+p+` AND status IN ('pending', 'accepted'))`)
	}

	if s := strings.TrimSpace(q.Search); s != "" {
		p := add("%" + s + "%")
		conds = append(conds, `(e.title ILIKE `+p+` OR e.description ILIKE `+p+
			` OR e.location ILIKE `+p+` OR to_char(e.date, 'YYYY-MM-DD') ILIKE `+p+`)`)
	}

	where := "TRUE"
	if len(conds) > 0 {
		where = strings.Join(conds, " AND ")
	}

	order := "ASC"
	if q.Descending {
		order = "DESC"
	}

	var b strings.Builder
	b.WriteString(`SELECT` + eventCardColumns + `
		FROM events e
		JOIN users u ON u.id = e.user_id
		WHERE ` + where + `
		ORDER BY e.date ` + order + `, e.id ` + order)
	if q.Limit > 0 {
		b.WriteString(` LIMIT ` + add(q.Limit))
	}

	return b.String(), args, nil
}
