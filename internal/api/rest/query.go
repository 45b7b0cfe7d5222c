package rest

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"borsa/internal/api"
)

// encodeQuery turns the transaction filters into query parameters. Every
// zero-valued filter stays out of the URL so the backend applies no
// constraint for it.
func encodeQuery(q api.TransactionQuery) url.Values {
	v := url.Values{}
	setID(v, "wallet_id", q.WalletID)
	setID(v, "user_id", q.UserID)
	setID(v, "person_id", q.PersonID)
	if len(q.CategoryIDs) > 0 {
		ids := make([]string, len(q.CategoryIDs))
		for i, id := range q.CategoryIDs {
			ids[i] = strconv.FormatInt(id, 10)
		}
		v.Set("category_ids", strings.Join(ids, ","))
	}
	setTime(v, "transaction_time_from", q.TransactionTimeFrom)
	setTime(v, "transaction_time_to", q.TransactionTimeTo)
	setTime(v, "entry_time_from", q.EntryTimeFrom)
	setTime(v, "entry_time_to", q.EntryTimeTo)
	setTime(v, "modified_time_from", q.ModifiedTimeFrom)
	setTime(v, "modified_time_to", q.ModifiedTimeTo)
	if q.AmountOp.Valid() {
		v.Set("amount_op", string(q.AmountOp))
		v.Set("amount_value", strconv.FormatInt(q.AmountValue, 10))
	}
	if q.FuzzyNote != "" {
		v.Set("fuzzy_note", q.FuzzyNote)
	}
	return v
}

func setID(v url.Values, key string, id int64) {
	if id > 0 {
		v.Set(key, strconv.FormatInt(id, 10))
	}
}

func setTime(v url.Values, key string, t time.Time) {
	if !t.IsZero() {
		v.Set(key, t.Format(time.RFC3339))
	}
}
