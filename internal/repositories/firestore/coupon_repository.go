package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/hanko-field/cartclone/internal/domain"
	pfirestore "github.com/hanko-field/cartclone/internal/platform/firestore"
	"github.com/hanko-field/cartclone/internal/repositories"
)

const couponCollection = "coupons"

// CouponRepository reads coupon definitions stored under their code.
type CouponRepository struct {
	base *pfirestore.Collection[domain.Coupon]
}

// NewCouponRepository constructs a Firestore-backed coupon repository.
func NewCouponRepository(provider *pfirestore.Provider) (*CouponRepository, error) {
	if provider == nil {
		return nil, errors.New("coupon repository requires firestore provider")
	}
	return &CouponRepository{
		base: pfirestore.NewCollection[domain.Coupon](provider, couponCollection, decodeCoupon),
	}, nil
}

// FindByCode loads the coupon with the given code.
func (r *CouponRepository) FindByCode(ctx context.Context, code string) (domain.Coupon, error) {
	if r == nil || r.base == nil {
		return domain.Coupon{}, errors.New("coupon repository not initialised")
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return domain.Coupon{}, pfirestore.WrapError("coupons.get", pfirestore.ErrDocumentMissing)
	}
	doc, err := r.base.Get(ctx, code)
	if err != nil {
		return domain.Coupon{}, err
	}
	return doc.Data, nil
}

func decodeCoupon(snap *firestore.DocumentSnapshot) (domain.Coupon, error) {
	var doc couponDocument
	if err := snap.DataTo(&doc); err != nil {
		return domain.Coupon{}, err
	}
	return domain.Coupon{
		Code:     snap.Ref.ID,
		Active:   doc.Active,
		StartsAt: doc.StartsAt,
		EndsAt:   doc.EndsAt,
	}, nil
}

type couponDocument struct {
	Active   bool       `firestore:"active"`
	StartsAt *time.Time `firestore:"startsAt,omitempty"`
	EndsAt   *time.Time `firestore:"endsAt,omitempty"`
}

var _ repositories.CouponRepository = (*CouponRepository)(nil)
