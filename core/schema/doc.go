/*
Package schema loads JSON payloads into records and dumps records back.

A Schema is bound to one record model. Loading validates the payload field by
field, then resolves the record the payload applies to:

 1. the instance passed with Into, when given;
 2. the existing record matching every primary key field of the payload;
 3. otherwise a new record built from the payload.

When an existing record is used, primary key fields are never overwritten.

# Declaring a Schema

	var Artists = entity.NewModel[*Artist]()
	var ArtistSchema = schema.New(Artists)

	rec, err := ArtistSchema.Load(ctx, sess, payload)
	var verr *schema.ValidationError
	if errors.As(err, &verr) {
		// verr.Messages maps field names to messages
	}

# Field Rules

Payload values are coerced into the Go type of each field. Validation rules come
from validate struct tags and use go-playground/validator. Unknown payload keys
are ignored. Fields tagged json:"-" are neither loaded nor dumped.

# Paging

Paged wraps a Schema to dump a page of records as

	{"meta": {"page": 3, "pages": 3, "per_page": 20, "total": 45}, "items": [...]}
*/
package schema
