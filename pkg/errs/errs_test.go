package errs_test

import (
	"errors"
	"fmt"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/thor-coding-cowboys/scorebrawl-sub001/pkg/errs"
)

func TestKinds(t *testing.T) {
	Convey("Given errors built with a kind", t, func() {
		v := errs.E("settlement.create_match", errs.ErrValidation, "teams must have equal number of players")
		nf := errs.E("settlement.remove_match", errs.ErrNotFound, "")

		Convey("Then errors.Is matches the kind sentinel", func() {
			So(errors.Is(v, errs.ErrValidation), ShouldBeTrue)
			So(errors.Is(v, errs.ErrNotFound), ShouldBeFalse)
			So(errors.Is(nf, errs.ErrNotFound), ShouldBeTrue)
		})

		Convey("Then the code follows the kind", func() {
			So(errs.Code(v), ShouldEqual, errs.CodeValidation)
			So(errs.Code(nf), ShouldEqual, errs.CodeNotFound)
			So(errs.Code(errors.New("boom")), ShouldEqual, errs.CodeInternal)
		})

		Convey("Then the message is the user facing text", func() {
			So(errs.Message(v), ShouldEqual, "teams must have equal number of players")
			So(v.Error(), ShouldEqual, "settlement.create_match: teams must have equal number of players")
			So(errs.Message(nf), ShouldEqual, "not found")
		})
	})
}

func TestWrap(t *testing.T) {
	Convey("Given a wrapped cause", t, func() {
		cause := errors.New("connection reset")

		Convey("When wrapping with an explicit kind", func() {
			err := errs.WrapKind("postgres.insert_match", errs.ErrInternal, cause)

			Convey("Then both the kind and the cause are reachable", func() {
				So(errors.Is(err, errs.ErrInternal), ShouldBeTrue)
				So(errors.Is(err, cause), ShouldBeTrue)
			})
		})

		Convey("When wrapping an already kinded error", func() {
			inner := errs.E("memory.update_score", errs.ErrConflict, "score changed concurrently")
			err := errs.Wrap("settlement.create_match", fmt.Errorf("apply: %w", inner))

			Convey("Then the original kind is kept", func() {
				So(errs.KindOf(err), ShouldEqual, errs.ErrConflict)
				So(errs.Message(err), ShouldEqual, "score changed concurrently")
			})
		})

		Convey("When wrapping nil", func() {
			So(errs.Wrap("op", nil), ShouldBeNil)
			So(errs.WrapKind("op", errs.ErrInternal, nil), ShouldBeNil)
		})
	})
}
