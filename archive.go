package firemock

import (
	"fmt"
	"time"

	"go.etcd.io/bbolt"
	"google.golang.org/grpc/codes"
)

// An archive is a Bolt file holding a store snapshot: one bucket per
// top-level collection, keyed by document ID, with msgpack-encoded documents
// (subcollections included) as values. Archives are fixtures; the client
// never writes through to them.

func openArchive(path string, readOnly bool) (*bbolt.DB, error) {
	bopt := &bbolt.Options{
		Timeout:  10 * time.Second,
		ReadOnly: readOnly,
		NoSync:   true,
	}
	bdb, err := bbolt.Open(path, 0666, bopt)
	if err != nil {
		return nil, fmt.Errorf("firemock: archive: %w", err)
	}
	return bdb, nil
}

// SaveArchive writes the whole store to a Bolt file at path, replacing any
// collections the file already holds.
func (c *Client) SaveArchive(path string) (err error) {
	bdb, err := openArchive(path, false)
	if err != nil {
		return errf(codes.Internal, path, err, "cannot open archive")
	}
	defer func() {
		if cerr := bdb.Close(); cerr != nil && err == nil {
			err = errf(codes.Internal, path, cerr, "cannot close archive")
		}
	}()

	return bdb.Update(func(btx *bbolt.Tx) error {
		var existing [][]byte
		err := btx.ForEach(func(name []byte, _ *bbolt.Bucket) error {
			existing = append(existing, append([]byte(nil), name...))
			return nil
		})
		if err != nil {
			return err
		}
		for _, name := range existing {
			if err := btx.DeleteBucket(name); err != nil {
				return err
			}
		}

		for _, name := range sortedKeys(c.data) {
			coll, ok := c.data[name].(map[string]any)
			if !ok {
				return invalidArgf(name, "%s holds %T, not a collection", name, c.data[name])
			}
			b, err := btx.CreateBucket([]byte(name))
			if err != nil {
				return errf(codes.Internal, name, err, "cannot create archive bucket")
			}
			for _, id := range sortedKeys(coll) {
				raw, err := MsgPack.Encode(coll[id])
				if err != nil {
					return errf(codes.InvalidArgument, name+"/"+id, err, "cannot archive document")
				}
				if err := b.Put([]byte(id), raw); err != nil {
					return errf(codes.Internal, name+"/"+id, err, "cannot archive document")
				}
			}
		}
		return nil
	})
}

// LoadArchive replaces the store with the contents of a Bolt file written by
// SaveArchive. Integers load as int64 and floats as float64.
func (c *Client) LoadArchive(path string) (err error) {
	bdb, err := openArchive(path, true)
	if err != nil {
		return errf(codes.NotFound, path, err, "cannot open archive")
	}
	defer func() {
		if cerr := bdb.Close(); cerr != nil && err == nil {
			err = errf(codes.Internal, path, cerr, "cannot close archive")
		}
	}()

	data := make(map[string]any)
	err = bdb.View(func(btx *bbolt.Tx) error {
		return btx.ForEach(func(name []byte, b *bbolt.Bucket) error {
			coll := make(map[string]any)
			err := b.ForEach(func(k, v []byte) error {
				var doc map[string]any
				if err := MsgPack.Decode(v, &doc); err != nil {
					return errf(codes.InvalidArgument, string(name)+"/"+string(k), err, "cannot load archived document")
				}
				if doc == nil {
					doc = make(map[string]any)
				}
				coll[string(k)] = doc
				return nil
			})
			data[string(name)] = coll
			return err
		})
	})
	if err != nil {
		return err
	}
	c.SetData(data)
	return nil
}
