// Copyright 2026 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package mf

import (
	"context"
	"time"

	"github.com/bits-and-blooms/bitset"
	"github.com/juju/errors"
	"go.uber.org/zap"

	"github.com/gorse-io/gorse-movies/common/floats"
	"github.com/gorse-io/gorse-movies/common/log"
	"github.com/gorse-io/gorse-movies/dataset"
	"github.com/gorse-io/gorse-movies/model"
)

// FitConfig controls a training run.
type FitConfig struct {
	Jobs      int
	Verbose   int
	MinRating float32
	MaxRating float32
}

func NewFitConfig() *FitConfig {
	return &FitConfig{
		Jobs:      1,
		Verbose:   0,
		MinRating: 0.5,
		MaxRating: 5,
	}
}

func (config *FitConfig) SetJobs(jobs int) *FitConfig {
	config.Jobs = jobs
	return config
}

func (config *FitConfig) SetVerbose(verbose int) *FitConfig {
	config.Verbose = verbose
	return config
}

func (config *FitConfig) SetRatingScale(minRating, maxRating float32) *FitConfig {
	config.MinRating = minRating
	config.MaxRating = maxRating
	return config
}

// SVD algorithm, as popularized by Simon Funk during the Netflix Prize. The
// prediction \hat{r}_{ui} is set as:
//
//	\hat{r}_{ui} = μ + b_u + b_i + q_i^Tp_u
//
// If user u has no training rating, then the bias b_u and the factors p_u are
// assumed to be zero. The same applies for item i with b_i and q_i. The
// prediction is clipped to the rating scale.
//
// Hyper-parameters:
//
//	UseBias    - Add biases to the model. Default is true.
//	Reg        - The regularization parameter of the cost function that is
//	             optimized. Default is 0.02.
//	Lr         - The learning rate of SGD. Default is 0.005.
//	NFactors   - The number of latent factors. Default is 100.
//	NEpochs    - The number of iteration of the SGD procedure. Default is 20.
//	InitMean   - The mean of initial random latent factors. Default is 0.
//	InitStdDev - The standard deviation of initial random latent factors. Default is 0.1.
//	RandomState - The seed of initial factors and epoch shuffling. Default is 0.
type SVD struct {
	model.BaseModel
	UserIndex       *dataset.Dict
	ItemIndex       *dataset.Dict
	UserPredictable *bitset.BitSet
	ItemPredictable *bitset.BitSet
	// Model parameters
	UserFactor [][]float32 // p_u
	ItemFactor [][]float32 // q_i
	UserBias   []float32   // b_u
	ItemBias   []float32   // b_i
	GlobalBias float32     // mu
	MinRating  float32
	MaxRating  float32
	// Hyper parameters
	useBias    bool
	nFactors   int
	nEpochs    int
	lr         float32
	reg        float32
	initMean   float32
	initStdDev float32
}

// NewSVD creates a SVD model.
func NewSVD(params model.Params) *SVD {
	svd := new(SVD)
	svd.SetParams(params)
	return svd
}

// SetParams sets hyper-parameters of the SVD model.
func (svd *SVD) SetParams(params model.Params) {
	svd.BaseModel.SetParams(params)
	svd.useBias = svd.Params.GetBool(model.UseBias, true)
	svd.nFactors = svd.Params.GetInt(model.NFactors, 100)
	svd.nEpochs = svd.Params.GetInt(model.NEpochs, 20)
	svd.lr = svd.Params.GetFloat32(model.Lr, 0.005)
	svd.reg = svd.Params.GetFloat32(model.Reg, 0.02)
	svd.initMean = svd.Params.GetFloat32(model.InitMean, 0)
	svd.initStdDev = svd.Params.GetFloat32(model.InitStdDev, 0.1)
}

// Invalid returns true if the model has not been fitted.
func (svd *SVD) Invalid() bool {
	return svd == nil ||
		svd.UserIndex == nil ||
		svd.ItemIndex == nil ||
		svd.UserFactor == nil ||
		svd.ItemFactor == nil
}

// IsUserPredictable returns false if the user has no training rating.
func (svd *SVD) IsUserPredictable(userIndex int32) bool {
	if userIndex < 0 || userIndex >= svd.UserIndex.Count() {
		return false
	}
	return svd.UserPredictable.Test(uint(userIndex))
}

// IsItemPredictable returns false if the item has no training rating.
func (svd *SVD) IsItemPredictable(itemIndex int32) bool {
	if itemIndex < 0 || itemIndex >= svd.ItemIndex.Count() {
		return false
	}
	return svd.ItemPredictable.Test(uint(itemIndex))
}

// Predict the rating given by a user to an item. Unknown users and items fall
// back to the bias terms.
func (svd *SVD) Predict(userId, itemId int64) float32 {
	return svd.clip(svd.internalPredict(svd.UserIndex.Index(userId), svd.ItemIndex.Index(itemId)))
}

func (svd *SVD) internalPredict(userIndex, itemIndex int32) float32 {
	userPredictable := svd.IsUserPredictable(userIndex)
	itemPredictable := svd.IsItemPredictable(itemIndex)
	ret := svd.GlobalBias
	if svd.useBias {
		// + b_u
		if userPredictable {
			ret += svd.UserBias[userIndex]
		}
		// + b_i
		if itemPredictable {
			ret += svd.ItemBias[itemIndex]
		}
	}
	// + q_i^Tp_u
	if userPredictable && itemPredictable {
		ret += floats.Dot(svd.UserFactor[userIndex], svd.ItemFactor[itemIndex])
	}
	return ret
}

func (svd *SVD) clip(x float32) float32 {
	return floats.Clip(x, svd.MinRating, svd.MaxRating)
}

func (svd *SVD) init(trainSet *dataset.Ratings, config *FitConfig) {
	svd.UserIndex = trainSet.GetUserDict()
	svd.ItemIndex = trainSet.GetItemDict()
	svd.MinRating = config.MinRating
	svd.MaxRating = config.MaxRating
	nUsers, nItems := int(svd.UserIndex.Count()), int(svd.ItemIndex.Count())
	// set trained flags
	svd.UserPredictable = bitset.New(uint(nUsers))
	svd.ItemPredictable = bitset.New(uint(nItems))
	for i := 0; i < trainSet.Len(); i++ {
		userIndex, itemIndex, _ := trainSet.GetDense(i)
		svd.UserPredictable.Set(uint(userIndex))
		svd.ItemPredictable.Set(uint(itemIndex))
	}
	// initialize parameters
	rng := svd.GetRandomGenerator()
	svd.GlobalBias = trainSet.GlobalMean()
	svd.UserBias = make([]float32, nUsers)
	svd.ItemBias = make([]float32, nItems)
	svd.UserFactor = rng.NormalMatrix(nUsers, svd.nFactors, svd.initMean, svd.initStdDev)
	svd.ItemFactor = rng.NormalMatrix(nItems, svd.nFactors, svd.initMean, svd.initStdDev)
}

// Fit the model on trainSet by stochastic gradient descent. testSet is only
// used to report the held-out score and may be empty.
func (svd *SVD) Fit(ctx context.Context, trainSet, testSet *dataset.Ratings, config *FitConfig) (Score, error) {
	if config == nil {
		config = NewFitConfig()
	}
	if err := trainSet.Validate(config.MinRating, config.MaxRating); err != nil {
		return Score{}, errors.Annotate(err, "invalid training set")
	}
	log.Logger().Info("fit svd",
		zap.Int("n_ratings", trainSet.Len()),
		zap.Int("n_users", trainSet.CountUsers()),
		zap.Int("n_items", trainSet.CountItems()),
		zap.String("params", svd.Params.ToString()))
	start := time.Now()
	// reset the generator so that refitting is reproducible
	svd.SetParams(svd.GetParams())
	svd.init(trainSet, config)
	rng := svd.GetRandomGenerator()
	buffer := make([]float32, svd.nFactors)
	for epoch := 1; epoch <= svd.nEpochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return Score{}, errors.Trace(err)
		}
		for _, i := range rng.Perm(trainSet.Len()) {
			userIndex, itemIndex, rating := trainSet.GetDense(i)
			userFactor := svd.UserFactor[userIndex]
			itemFactor := svd.ItemFactor[itemIndex]
			// e_{ui} = r - \hat r
			diff := rating - svd.internalPredict(userIndex, itemIndex)
			if svd.useBias {
				// b_u <- b_u + \gamma (e_{ui} - \lambda b_u)
				svd.UserBias[userIndex] += svd.lr * (diff - svd.reg*svd.UserBias[userIndex])
				// b_i <- b_i + \gamma (e_{ui} - \lambda b_i)
				svd.ItemBias[itemIndex] += svd.lr * (diff - svd.reg*svd.ItemBias[itemIndex])
			}
			// p_u <- p_u + \gamma (e_{ui} q_i - \lambda p_u)
			copy(buffer, userFactor)
			floats.MulConst(userFactor, 1-svd.lr*svd.reg)
			floats.MulConstAdd(itemFactor, svd.lr*diff, userFactor)
			// q_i <- q_i + \gamma (e_{ui} p_u - \lambda q_i)
			floats.MulConst(itemFactor, 1-svd.lr*svd.reg)
			floats.MulConstAdd(buffer, svd.lr*diff, itemFactor)
		}
		if config.Verbose > 0 && epoch%config.Verbose == 0 {
			score, err := svd.Evaluate(ctx, testSet, config.Jobs)
			if err != nil {
				return Score{}, errors.Trace(err)
			}
			log.Logger().Debug("fit svd",
				zap.Int("epoch", epoch), zap.Int("n_epochs", svd.nEpochs),
				zap.Float32("rmse", score.RMSE), zap.Float32("mae", score.MAE))
		}
	}
	if !floats.IsFinite(svd.UserBias) || !floats.IsFinite(svd.ItemBias) {
		return Score{}, errors.Errorf("svd diverged, try a smaller learning rate")
	}
	score, err := svd.Evaluate(ctx, testSet, config.Jobs)
	if err != nil {
		return Score{}, errors.Trace(err)
	}
	score.NumTrain = trainSet.Len()
	log.Logger().Info("fit svd complete",
		zap.Duration("duration", time.Since(start)),
		zap.Int("n_test", score.NumTest),
		zap.Float32("rmse", score.RMSE),
		zap.Float32("mae", score.MAE))
	return score, nil
}
