package mocks

//go:generate mockery --name DocumentStore --srcpkg github.com/agrisense-lab/npkcal/internal/core/storage --output ./storage --outpkg storagemocks --with-expecter
//go:generate mockery --name Predictor --srcpkg github.com/agrisense-lab/npkcal/internal/model --output ./model --outpkg modelmocks --with-expecter
