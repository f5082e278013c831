package messaging

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/market/internal/domain/payment"
)

// EncodeJob writes a payment job as a JSON object.
func EncodeJob(job payment.Job) []byte {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("transaction_id")
	e.Str(job.TransactionID)
	e.FieldStart("order_id")
	e.Str(job.OrderID)
	e.ObjEnd()
	return e.Bytes()
}

// DecodeJob parses a payment job written by EncodeJob. Unknown fields are
// skipped.
func DecodeJob(data []byte) (payment.Job, error) {
	var job payment.Job
	err := jx.DecodeBytes(data).Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "transaction_id":
			job.TransactionID, err = d.Str()
		case "order_id":
			job.OrderID, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		return payment.Job{}, errors.Wrap(err, "decode payment job")
	}
	if job.TransactionID == "" {
		return payment.Job{}, errors.New("decode payment job: missing transaction_id")
	}
	return job, nil
}
