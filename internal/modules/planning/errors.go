package planning

import "errors"

var (
	ErrInsufficientSkills   = errors.New("skill catalog too small for a full plan")
	ErrEmptyCatalog         = errors.New("skill catalog is empty")
	ErrNoAnswers            = errors.New("attempt has no answers")
	ErrInvalidPoints        = errors.New("question points must not be negative")
	ErrDayLocked            = errors.New("day is not accessible yet")
	ErrDayNotPlanned        = errors.New("day has no planned skills yet")
	ErrAlreadyPassed        = errors.New("day already passed")
	ErrRetestNotEligible    = errors.New("no retest available for day")
	ErrPredictorUnavailable = errors.New("mastery predictor unavailable")
)
